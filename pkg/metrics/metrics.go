// Package metrics provides the Prometheus registry, the /metrics handler and
// the HTTP API metrics. Client, cache and rate limit metrics are defined in
// their respective packages (client, cache, ratelimit) to maintain
// modularity and avoid circular dependencies.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the market client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer serves the registered metrics.
var Gatherer = prometheus.DefaultGatherer

// HTTP API metrics.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "market_http_requests_total",
		Help: "Total API requests by route, method and status",
	}, []string{"route", "method", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "market_http_request_duration_seconds",
		Help:    "API request duration in seconds by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	HTTPRateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "market_http_rate_limited_total",
		Help: "Total API requests rejected by the per-client rate limit",
	})

	HTTPDataSourceTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "market_http_data_source_total",
		Help: "Total data responses by route and data source",
	}, []string{"route", "source"})
)

// Handler returns the /metrics handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// ObserveHTTP records one finished API request.
func ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	HTTPRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - market_rate_limit_hits_total (Counter): Upstream 429 responses
//   - market_rate_limit_blocks_total (Counter): Requests not sent while blocked
//   - market_rate_limit_throttles_total (Counter): Requests delayed by pacing
//   - market_rate_limit_blocked_seconds (Gauge): Block window set at the last 429
//
// Cache Metrics (pkg/cache):
//   - market_cache_hits_total{tier} (Counter): Fresh hits by tier (memory, redis)
//   - market_cache_misses_total (Counter): Lookups without a fresh entry
//   - market_cache_stale_served_total{tier} (Counter): Stale entries served
//   - market_cache_memory_entries (Gauge): Entries in the memory tier
//   - market_304_responses_total (Counter): Entries revalidated by 304
//   - market_cache_errors_total{operation} (Counter): Redis store errors
//
// Request Metrics (pkg/client):
//   - market_requests_total{endpoint, status} (Counter): Upstream requests by category and status
//   - market_request_duration_seconds{endpoint} (Histogram): Upstream duration including retries
//   - market_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//   - market_results_total{endpoint, source} (Counter): Results by data source
//   - market_fallback_served_total{endpoint} (Counter): Static fallback payloads served
//
// Retry Metrics (pkg/client):
//   - market_retries_total{error_class} (Counter): Retry attempts
//   - market_retry_backoff_seconds{error_class} (Histogram): Backoff durations
//   - market_retry_exhausted_total{error_class} (Counter): Requests that exhausted retries
//
// Warmup Metrics (pkg/warmup):
//   - market_warmup_runs_total{result} (Counter): Warmup runs by outcome
//   - market_warmup_duration_seconds (Histogram): Warmup run duration
//
// HTTP API Metrics (this package):
//   - market_http_requests_total{route, method, status} (Counter)
//   - market_http_request_duration_seconds{route} (Histogram)
//   - market_http_rate_limited_total (Counter)
//   - market_http_data_source_total{route, source} (Counter)
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(market_cache_hits_total[5m])) /
//   (sum(rate(market_cache_hits_total[5m])) + sum(rate(market_cache_misses_total[5m])))
//
//   # Share of degraded results
//   sum(rate(market_results_total{source=~"stale|fallback"}[5m])) /
//   sum(rate(market_results_total[5m]))
//
//   # Upstream 429s
//   rate(market_rate_limit_hits_total[5m])
//
//   # P95 Upstream Latency
//   histogram_quantile(0.95, rate(market_request_duration_seconds_bucket[5m]))
