package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/crypto-market-client/pkg/fallback"
	"github.com/Sternrassler/crypto-market-client/pkg/market"
	"github.com/Sternrassler/crypto-market-client/pkg/pagination"
	"github.com/tidwall/gjson"
)

const (
	// MaxPerPage is the largest page size the markets listing accepts.
	MaxPerPage = 250

	// MaxTotal is the largest listing GetAllCoins fetches.
	MaxTotal = MaxPerPage * 40

	defaultCoinsPerPage     = 100
	defaultExchangesPerPage = 50
	defaultChartDays        = 7

	// Charts over more days than this change rarely and use the long duration.
	longChartDays = 90
)

// Data is a decoded endpoint result. Like Result it is always populated.
type Data[T any] struct {
	Value    T
	Source   Source
	CachedAt time.Time
	Err      error
}

// usableFunc reports whether a payload is worth showing.
type usableFunc func(gjson.Result) bool

func nonEmptyArray(r gjson.Result) bool {
	return r.IsArray() && len(r.Array()) > 0
}

func hasArray(field string) usableFunc {
	return func(r gjson.Result) bool {
		return r.IsObject() && r.Get(field).IsArray()
	}
}

func hasObject(field string) usableFunc {
	return func(r gjson.Result) bool {
		return r.IsObject() && r.Get(field).IsObject()
	}
}

func isObject(r gjson.Result) bool {
	return r.IsObject()
}

func coinDetail(r gjson.Result) bool {
	return r.IsObject() && r.Get("id").String() != ""
}

// fetchTyped fetches ep and decodes it into T. A payload that is null,
// empty or does not decode is replaced by the category fallback.
func fetchTyped[T any](ctx context.Context, c *Client, ep Endpoint, usable usableFunc) Data[T] {
	res := c.Fetch(ctx, ep)
	out := Data[T]{Source: res.Source, CachedAt: res.CachedAt, Err: res.Err}

	cause := fmt.Errorf("%w: empty or unusable %s payload", ErrInvalidPayload, res.Category)
	if usable(gjson.ParseBytes(res.Data)) {
		err := json.Unmarshal(res.Data, &out.Value)
		if err == nil {
			return out
		}
		cause = fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if res.Source != SourceFallback {
		marketFallbackServedTotal.WithLabelValues(string(res.Category)).Inc()
		c.logger.Warn().
			Err(cause).
			Str("endpoint", ep.Path).
			Str("source", string(res.Source)).
			Msg("Substituting fallback for unusable payload")
	}

	var value T
	payload, _ := fallback.ForPath(ep.Path, time.Now())
	if json.Unmarshal(payload, &value) != nil {
		// e.g. "[]" for a coin without a fallback entry
		var zero T
		value = zero
	}

	out.Value = value
	out.Source = SourceFallback
	out.CachedAt = time.Time{}
	if out.Err == nil {
		out.Err = cause
	}
	return out
}

// GetCoins returns one page of the USD markets listing ordered by market cap.
// page < 1 is treated as 1; perPage <= 0 as 100 and perPage > 250 as 250.
func (c *Client) GetCoins(ctx context.Context, page, perPage int) Data[[]market.Coin] {
	if page < 1 {
		page = 1
	}
	switch {
	case perPage <= 0:
		perPage = defaultCoinsPerPage
	case perPage > MaxPerPage:
		perPage = MaxPerPage
	}

	return fetchTyped[[]market.Coin](ctx, c, Endpoint{
		Path: "/coins/markets",
		Query: url.Values{
			"vs_currency":             {"usd"},
			"order":                   {"market_cap_desc"},
			"per_page":                {strconv.Itoa(perPage)},
			"page":                    {strconv.Itoa(page)},
			"sparkline":               {"false"},
			"price_change_percentage": {"24h"},
		},
		Duration: c.config.Durations.Short,
	}, nonEmptyArray)
}

// GetAllCoins fetches the first total coins of the markets listing, pages
// in parallel. total <= 0 is treated as 250 and total > MaxTotal as MaxTotal.
//
// If the first page degrades to fallback the fallback list is returned. A
// later page that degrades to fallback ends the listing there; Err then
// carries its cause. The result is stale when any included page is.
func (c *Client) GetAllCoins(ctx context.Context, total int) Data[[]market.Coin] {
	switch {
	case total <= 0:
		total = MaxPerPage
	case total > MaxTotal:
		total = MaxTotal
	}
	perPage := min(total, MaxPerPage)
	pages := (total + perPage - 1) / perPage

	fetcher := pagination.NewBatchFetcher[Data[[]market.Coin]](
		pagination.PageFetcherFunc[Data[[]market.Coin]](func(ctx context.Context, page int) (Data[[]market.Coin], error) {
			// Pages not yet started when the caller gives up are skipped
			if err := ctx.Err(); err != nil {
				return Data[[]market.Coin]{}, fmt.Errorf("%w: %v", ErrContextCancelled, err)
			}
			return c.GetCoins(ctx, page, perPage), nil
		}),
		pagination.Config{MaxConcurrency: c.config.MaxConcurrency},
	)

	results, err := fetcher.FetchPages(ctx, pages)
	if err != nil || len(results) == 0 {
		return Data[[]market.Coin]{
			Value:  truncate(fallback.Markets(), total),
			Source: SourceFallback,
			Err:    err,
		}
	}

	first := results[0]
	if first.Source == SourceFallback {
		first.Value = truncate(first.Value, total)
		return first
	}

	out := Data[[]market.Coin]{
		Value:    make([]market.Coin, 0, total),
		Source:   first.Source,
		CachedAt: first.CachedAt,
	}
	for _, r := range results {
		if r.Source == SourceFallback {
			out.Err = r.Err
			break
		}
		out.Value = append(out.Value, r.Value...)
		if r.Source == SourceStale {
			out.Source = SourceStale
		}
		if r.CachedAt.Before(out.CachedAt) {
			out.CachedAt = r.CachedAt
		}
		if out.Err == nil && r.Err != nil {
			out.Err = r.Err
		}
	}
	out.Value = truncate(out.Value, total)

	return out
}

// GetCoinData returns the detail record for a coin. Value is nil when
// neither the upstream, the cache nor the fallback table knows the coin.
func (c *Client) GetCoinData(ctx context.Context, id string) Data[*market.CoinDetail] {
	return fetchTyped[*market.CoinDetail](ctx, c, Endpoint{
		Path: "/coins/" + url.PathEscape(id),
		Query: url.Values{
			"localization":   {"false"},
			"tickers":        {"false"},
			"market_data":    {"true"},
			"community_data": {"false"},
			"developer_data": {"false"},
		},
		Duration: c.config.Durations.Medium,
	}, coinDetail)
}

// GetCoinMarketChart returns price, volume and market cap series in USD for
// the last days days. days <= 0 is treated as 7.
func (c *Client) GetCoinMarketChart(ctx context.Context, id string, days int) Data[market.MarketChart] {
	if days <= 0 {
		days = defaultChartDays
	}

	duration := c.config.Durations.Short
	if days > longChartDays {
		duration = c.config.Durations.Long
	}

	return fetchTyped[market.MarketChart](ctx, c, Endpoint{
		Path: "/coins/" + url.PathEscape(id) + "/market_chart",
		Query: url.Values{
			"vs_currency": {"usd"},
			"days":        {strconv.Itoa(days)},
		},
		Duration: duration,
	}, hasArray("prices"))
}

// GetTrendingCoins returns the trending search list.
func (c *Client) GetTrendingCoins(ctx context.Context) Data[market.TrendingResponse] {
	return fetchTyped[market.TrendingResponse](ctx, c, Endpoint{
		Path:     "/search/trending",
		Duration: c.config.Durations.Short,
	}, hasArray("coins"))
}

// GetGlobalData returns global market statistics.
func (c *Client) GetGlobalData(ctx context.Context) Data[market.GlobalResponse] {
	return fetchTyped[market.GlobalResponse](ctx, c, Endpoint{
		Path:     "/global",
		Duration: c.config.Durations.Short,
	}, hasObject("data"))
}

// GetExchanges returns one page of exchanges. page < 1 is treated as 1 and
// perPage <= 0 as 50.
func (c *Client) GetExchanges(ctx context.Context, page, perPage int) Data[[]market.Exchange] {
	if page < 1 {
		page = 1
	}
	switch {
	case perPage <= 0:
		perPage = defaultExchangesPerPage
	case perPage > MaxPerPage:
		perPage = MaxPerPage
	}

	return fetchTyped[[]market.Exchange](ctx, c, Endpoint{
		Path: "/exchanges",
		Query: url.Values{
			"per_page": {strconv.Itoa(perPage)},
			"page":     {strconv.Itoa(page)},
		},
		Duration: c.config.Durations.Medium,
	}, nonEmptyArray)
}

// GetSearchResults searches coins and exchanges. A blank query returns empty
// results without calling the upstream.
func (c *Client) GetSearchResults(ctx context.Context, query string) Data[market.SearchResults] {
	query = strings.TrimSpace(query)
	if query == "" {
		return Data[market.SearchResults]{
			Value: market.SearchResults{
				Coins:     []market.SearchCoin{},
				Exchanges: []market.SearchExchange{},
			},
			Source: SourceFallback,
		}
	}

	return fetchTyped[market.SearchResults](ctx, c, Endpoint{
		Path:     "/search",
		Query:    url.Values{"query": {query}},
		Duration: c.config.Durations.Medium,
	}, isObject)
}

func truncate[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
