package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"time"

	"github.com/Sternrassler/crypto-market-client/pkg/cache"
	"github.com/Sternrassler/crypto-market-client/pkg/fallback"
	"github.com/Sternrassler/crypto-market-client/pkg/market"
	"github.com/tidwall/gjson"
)

// Source tells where the data in a Result came from.
type Source string

const (
	SourceNetwork     Source = "network"
	SourceMemory      Source = "memory"
	SourceRedis       Source = "redis"
	SourceRevalidated Source = "revalidated"
	SourceStale       Source = "stale"
	SourceFallback    Source = "fallback"
)

// Degraded reports whether the data was served instead of a successful
// upstream or fresh cache read.
func (s Source) Degraded() bool {
	return s == SourceStale || s == SourceFallback
}

// Endpoint describes one upstream GET.
type Endpoint struct {
	Path     string        // relative to the base URL, e.g. "/coins/markets"
	Query    url.Values    // optional
	Duration time.Duration // freshness; 0 uses the short duration
}

// Result is the outcome of Fetch. Data is always set.
type Result struct {
	Data     json.RawMessage
	Source   Source
	CachedAt time.Time // zero for fallback data
	Category market.Category

	// Err is the failure that caused degradation. Informational only.
	Err error
}

// Fetch returns the data for ep and never fails.
//
// Fresh cache entries are served directly. Otherwise one refresh per key
// runs at a time (concurrent callers share it); the refresh revalidates a
// stale entry when it carries validators. When the upstream fails the newest
// stale entry is served, and without one the static fallback payload for the
// endpoint category.
//
// A caller whose ctx ends while waiting gets degraded data immediately; the
// shared refresh keeps running for the other callers and the cache. A ctx
// that is already done never starts a refresh.
func (c *Client) Fetch(ctx context.Context, ep Endpoint) Result {
	u := c.resolve(ep.Path, ep.Query)
	key := cache.KeyFromURL(u, c.baseURL.Path)
	category, _ := market.Categorize(ep.Path)

	duration := ep.Duration
	if duration <= 0 {
		duration = c.config.Durations.Short
	}

	hit := c.cache.Lookup(ctx, key)
	if hit.Fresh() {
		return c.finish(Result{
			Data:     hit.Entry.Data,
			Source:   sourceForTier(hit.Tier),
			CachedAt: hit.Entry.CachedAt,
			Category: category,
		})
	}

	// A caller that already gave up must not start a detached refresh
	if err := ctx.Err(); err != nil {
		return c.finish(c.degrade(context.WithoutCancel(ctx), key, ep.Path, category,
			fmt.Errorf("%w: %v", ErrContextCancelled, err)))
	}

	ch := c.inflight.DoChan(key.String(), func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx), u, key, category, duration, hit.Entry), nil
	})

	select {
	case res := <-ch:
		result := res.Val.(Result)
		if res.Shared {
			result.Data = slices.Clone(result.Data)
		}
		return c.finish(result)

	case <-ctx.Done():
		c.logger.Debug().
			Str("endpoint", ep.Path).
			Msg("Caller gave up waiting for refresh")
		return c.finish(c.degrade(context.WithoutCancel(ctx), key, ep.Path, category,
			fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())))
	}
}

// refresh performs the upstream call for key and stores a usable response.
func (c *Client) refresh(ctx context.Context, u *url.URL, key cache.CacheKey, category market.Category, duration time.Duration, stale *cache.CacheEntry) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return c.degrade(ctx, key, u.Path, category, fmt.Errorf("create request: %w", err))
	}

	if cache.ShouldMakeConditionalRequest(stale) {
		cache.AddConditionalHeaders(req, stale)
	}

	resp, err := c.Do(req)
	if err != nil {
		return c.degrade(ctx, key, u.Path, category, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		if stale == nil {
			return c.degrade(ctx, key, u.Path, category,
				fmt.Errorf("%w: 304 without a cached entry", ErrInvalidPayload))
		}

		entry := cache.Revalidated(stale, resp)
		entry.Duration = duration
		c.cache.Touch(ctx, key, stale, entry)

		c.logger.Debug().
			Str("key", key.String()).
			Msg("Cache entry revalidated")

		return Result{
			Data:     entry.Data,
			Source:   SourceRevalidated,
			CachedAt: entry.CachedAt,
			Category: category,
		}
	}

	entry, err := cache.ResponseToEntry(resp, duration)
	if err != nil {
		return c.degrade(ctx, key, u.Path, category, err)
	}

	if !gjson.ValidBytes(entry.Data) {
		return c.degrade(ctx, key, u.Path, category,
			fmt.Errorf("%w: response body is not valid JSON", ErrInvalidPayload))
	}

	c.cache.Store(ctx, key, entry)

	return Result{
		Data:     entry.Data,
		Source:   SourceNetwork,
		CachedAt: entry.CachedAt,
		Category: category,
	}
}

// degrade serves the newest stale entry for key or, without one, the static
// fallback payload for path.
func (c *Client) degrade(ctx context.Context, key cache.CacheKey, path string, category market.Category, cause error) Result {
	if hit, ok := c.cache.Stale(ctx, key); ok {
		c.logger.Warn().
			Err(cause).
			Str("key", key.String()).
			Str("tier", string(hit.Tier)).
			Dur("age", hit.Entry.Age()).
			Msg("Serving stale data")

		return Result{
			Data:     hit.Entry.Data,
			Source:   SourceStale,
			CachedAt: hit.Entry.CachedAt,
			Category: category,
			Err:      cause,
		}
	}

	data, _ := fallback.ForPath(c.upstreamPath(path), time.Now())
	marketFallbackServedTotal.WithLabelValues(string(category)).Inc()

	c.logger.Warn().
		Err(cause).
		Str("key", key.String()).
		Str("category", string(category)).
		Msg("Serving fallback data")

	return Result{
		Data:     data,
		Source:   SourceFallback,
		Category: category,
		Err:      cause,
	}
}

func (c *Client) finish(r Result) Result {
	marketResultsTotal.WithLabelValues(string(r.Category), string(r.Source)).Inc()
	return r
}

// upstreamPath strips the base URL path so categorization sees the API path.
func (c *Client) upstreamPath(path string) string {
	return cache.KeyFromURL(&url.URL{Path: path}, c.baseURL.Path).Endpoint
}

func sourceForTier(tier cache.Tier) Source {
	if tier == cache.TierRedis {
		return SourceRedis
	}
	return SourceMemory
}
