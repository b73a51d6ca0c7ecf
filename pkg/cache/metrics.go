package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks fresh cache hits by tier
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_cache_hits_total",
			Help: "Total number of fresh cache hits",
		},
		[]string{"tier"}, // "memory", "redis"
	)

	// CacheMisses tracks lookups without a fresh entry in any tier
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "market_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	// StaleServed tracks stale entries handed out after an upstream failure
	StaleServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_cache_stale_served_total",
			Help: "Total number of stale cache entries served",
		},
		[]string{"tier"},
	)

	// MemoryEntries tracks the number of entries in the memory tier
	MemoryEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "market_cache_memory_entries",
			Help: "Current number of entries in the memory tier",
		},
	)

	// ConditionalRequests tracks 304 Not Modified revalidations
	ConditionalRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "market_304_responses_total",
			Help: "Total number of 304 Not Modified revalidations",
		},
	)

	// CacheErrors tracks store tier errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
