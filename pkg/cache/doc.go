// Package cache provides the memory and Redis cache tiers used by the
// market client.
//
// Features:
//
// - Bounded in-process LRU tier (hashicorp/golang-lru)
// - Redis store tier shared between instances
// - Freshness decided per entry from CachedAt and Duration
// - Stale entries retained for degraded serving after upstream failures
// - ETag / Last-Modified conditional requests and 304 revalidation
// - Prometheus metrics for observability
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	tiered := cache.NewTiered(
//		cache.NewMemory(cache.DefaultMemorySize),
//		cache.NewManager(redisClient, cache.DefaultStaleRetention),
//		logger,
//	)
//
//	key := cache.CacheKey{
//		Endpoint:    "/coins/markets",
//		QueryParams: url.Values{"vs_currency": []string{"usd"}},
//	}
//
//	if hit, ok := tiered.Fresh(ctx, key); ok {
//		return hit.Entry.Data
//	}
//
// # Storing Responses
//
//	entry, err := cache.ResponseToEntry(resp, 5*time.Minute)
//	if err != nil {
//		return err
//	}
//	tiered.Store(ctx, key, entry)
//
// # Conditional Requests
//
//	hit := tiered.Lookup(ctx, key)
//	if cache.ShouldMakeConditionalRequest(hit.Entry) {
//		cache.AddConditionalHeaders(req, hit.Entry)
//	}
//	// on 304:
//	tiered.Store(ctx, key, cache.Revalidated(hit.Entry, resp))
//
// # Metrics
//
//   - market_cache_hits_total{tier} - Fresh hits per tier
//   - market_cache_misses_total - Lookups without a fresh entry
//   - market_cache_stale_served_total{tier} - Stale entries served
//   - market_cache_memory_entries - Entries in the memory tier
//   - market_304_responses_total - Conditional request successes
//   - market_cache_errors_total{operation} - Store tier errors
package cache
