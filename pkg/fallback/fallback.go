// Package fallback holds the static payloads served when the upstream is
// rate-limiting or unreachable and no cached copy exists.
//
// Payloads are returned as fresh copies; callers may modify them.
package fallback

import (
	"encoding/json"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/Sternrassler/crypto-market-client/pkg/market"
)

var (
	emptyList   = json.RawMessage(`[]`)
	emptyObject = json.RawMessage(`{}`)
)

// ForPath returns the fallback payload for an upstream endpoint path.
//
// Known coin detail paths yield the coin table entry. Paths that match no
// category yield "[]" when they mention markets or coins and "{}" otherwise.
func ForPath(path string, now time.Time) (json.RawMessage, market.Category) {
	category, id := market.Categorize(path)

	var v any
	switch category {
	case market.CategoryCoin:
		detail, ok := Coin(id)
		if !ok {
			return slices.Clone(emptyList), category
		}
		v = detail
	case market.CategoryMarkets:
		v = Markets()
	case market.CategoryGlobal:
		v = Global()
	case market.CategoryMarketChart:
		v = Chart(now)
	case market.CategoryTrending:
		v = Trending()
	case market.CategoryExchanges:
		v = Exchanges()
	case market.CategorySearch:
		v = Search()
	default:
		return Empty(path), category
	}

	return mustMarshal(v), category
}

// Empty returns the neutral payload for a path without a category.
func Empty(path string) json.RawMessage {
	if strings.Contains(path, "markets") || strings.Contains(path, "coins") {
		return slices.Clone(emptyList)
	}
	return slices.Clone(emptyObject)
}

// Markets returns the top ten coins by market cap.
func Markets() []market.Coin {
	return slices.Clone(markets)
}

// Global returns aggregate market statistics.
func Global() market.GlobalResponse {
	g := global
	g.Data.TotalMarketCap = maps.Clone(global.Data.TotalMarketCap)
	g.Data.TotalVolume = maps.Clone(global.Data.TotalVolume)
	g.Data.MarketCapPercentage = maps.Clone(global.Data.MarketCapPercentage)
	return g
}

// Chart returns 168 hourly points ending at now.
func Chart(now time.Time) market.MarketChart {
	return chart(now)
}

// Trending returns four trending coins.
func Trending() market.TrendingResponse {
	return market.TrendingResponse{Coins: slices.Clone(trending.Coins)}
}

// Exchanges returns the top three exchanges by trust score.
func Exchanges() []market.Exchange {
	return slices.Clone(exchanges)
}

// Search returns a two-coin result set with no exchanges.
func Search() market.SearchResults {
	return market.SearchResults{
		Coins:     slices.Clone(search.Coins),
		Exchanges: []market.SearchExchange{},
	}
}

// Coin returns the detail document of a well-known coin.
func Coin(id string) (market.CoinDetail, bool) {
	c, ok := coins[id]
	if !ok {
		return market.CoinDetail{}, false
	}
	// Round-trip through JSON for a deep copy of maps and slices.
	var out market.CoinDetail
	if err := json.Unmarshal(mustMarshal(c), &out); err != nil {
		return market.CoinDetail{}, false
	}
	return out, true
}

// Coins lists the IDs with a detail fallback.
func Coins() []string {
	ids := make([]string, 0, len(coins))
	for id := range coins {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic("fallback: marshal static payload: " + err.Error())
	}
	return data
}
