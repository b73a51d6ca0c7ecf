// Package client provides the CoinGecko market-data client with a tiered
// cache, retry with backoff, shared rate limit state and static fallback
// data. Fetch and the typed endpoint methods never return an error: when the
// upstream fails they degrade to stale cached data or to a fallback payload.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/crypto-market-client/pkg/cache"
	"github.com/Sternrassler/crypto-market-client/pkg/market"
	"github.com/Sternrassler/crypto-market-client/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

// Prometheus metrics for client operations.
var (
	marketRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "market_requests_total",
		Help: "Total upstream requests by endpoint category and status",
	}, []string{"endpoint", "status"})

	marketRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "market_request_duration_seconds",
		Help:    "Upstream request duration in seconds by endpoint category, including retries",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 15, 30, 60},
	}, []string{"endpoint"})

	marketErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "market_errors_total",
		Help: "Total upstream errors by class",
	}, []string{"class"})

	marketResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "market_results_total",
		Help: "Total results handed to callers by endpoint category and source",
	}, []string{"endpoint", "source"})

	marketFallbackServedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "market_fallback_served_total",
		Help: "Total static fallback payloads served by endpoint category",
	}, []string{"endpoint"})
)

// ErrorClass represents a classification of upstream failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors other than 429.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 Too Many Requests.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents transport errors and attempt timeouts.
	ErrorClassNetwork ErrorClass = "network"
)

// DefaultBaseURL is the public CoinGecko v3 API.
const DefaultBaseURL = "https://api.coingecko.com/api/v3"

// Durations are the freshness windows applied per endpoint.
type Durations struct {
	Short  time.Duration // markets, charts, trending, global
	Medium time.Duration // coin detail, exchanges, search
	Long   time.Duration // long-range charts
}

// DefaultDurations returns 5 minutes, 30 minutes and 6 hours.
func DefaultDurations() Durations {
	return Durations{
		Short:  5 * time.Minute,
		Medium: 30 * time.Minute,
		Long:   6 * time.Hour,
	}
}

// Client is the market-data client.
type Client struct {
	httpClient  *http.Client
	redis       *redis.Client
	rateLimiter *ratelimit.Tracker
	cache       *cache.Tiered
	gate        *semaphore.Weighted
	inflight    singleflight.Group
	baseURL     *url.URL
	config      Config
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Redis client for the store tier and shared rate limit state.
	// Optional: nil runs memory-only with in-process rate limit state.
	Redis *redis.Client

	// BaseURL of the upstream API
	BaseURL string

	// User-Agent header sent with every request
	UserAgent string

	// AttemptTimeout bounds each attempt, including reading the body
	AttemptTimeout time.Duration

	// Retry policy for network failures
	Retry RetryConfig

	// MaxConcurrency is the max number of parallel upstream requests
	MaxConcurrency int

	// Caching
	Durations       Durations
	MemoryCacheSize int           // entries in the memory tier
	StaleRetention  time.Duration // how long Redis keeps entries past freshness

	// RateLimit paces outgoing calls and sets the 429 cooldown
	RateLimit ratelimit.Config
}

// DefaultConfig returns the default configuration.
func DefaultConfig(redis *redis.Client, userAgent string) Config {
	return Config{
		Redis:           redis,
		BaseURL:         DefaultBaseURL,
		UserAgent:       userAgent,
		AttemptTimeout:  15 * time.Second,
		Retry:           DefaultRetryConfig(),
		MaxConcurrency:  5,
		Durations:       DefaultDurations(),
		MemoryCacheSize: cache.DefaultMemorySize,
		StaleRetention:  cache.DefaultStaleRetention,
		RateLimit:       ratelimit.DefaultConfig(),
	}
}

// New creates a new market client.
func New(cfg Config) (*Client, error) {
	baseURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if baseURL.Scheme != "http" && baseURL.Scheme != "https" || baseURL.Host == "" {
		return nil, fmt.Errorf("base url must be an absolute http(s) url (got %q)", cfg.BaseURL)
	}

	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.AttemptTimeout <= 0 {
		return nil, fmt.Errorf("attempt_timeout must be > 0 (got %s)", cfg.AttemptTimeout)
	}

	if cfg.Retry.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.Retry.MaxRetries)
	}

	if cfg.MaxConcurrency <= 0 {
		return nil, fmt.Errorf("max_concurrency must be > 0 (got %d)", cfg.MaxConcurrency)
	}

	if cfg.Durations.Short <= 0 || cfg.Durations.Medium <= 0 || cfg.Durations.Long <= 0 {
		return nil, fmt.Errorf("cache durations must be > 0 (got %s/%s/%s)",
			cfg.Durations.Short, cfg.Durations.Medium, cfg.Durations.Long)
	}

	// Initialize logger
	logger := log.With().Str("component", "market-client").Logger()

	// Create rate limit tracker
	rateLimiter := ratelimit.NewTracker(cfg.Redis, cfg.RateLimit, logger)

	// Create cache tiers
	var store *cache.Manager
	if cfg.Redis != nil {
		store = cache.NewManager(cfg.Redis, cfg.StaleRetention)
	}
	tiered := cache.NewTiered(cache.NewMemory(cfg.MemoryCacheSize), store, logger)

	return &Client{
		httpClient:  &http.Client{},
		redis:       cfg.Redis,
		rateLimiter: rateLimiter,
		cache:       tiered,
		gate:        semaphore.NewWeighted(int64(cfg.MaxConcurrency)),
		baseURL:     baseURL,
		config:      cfg,
		logger:      logger,
	}, nil
}

// Do performs one upstream request with rate limiting, concurrency gating,
// per-attempt timeouts and retry of network failures.
//
// 2xx and 304 responses are returned with a fully buffered body. Any other
// status is returned as a *MarketError and the response is discarded; a 429
// also opens the shared block window.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	category, _ := market.Categorize(req.URL.Path)
	endpoint := string(category)

	// Start request timing
	startTime := time.Now()
	defer func() {
		marketRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: Check Rate Limit
	allowed, err := c.rateLimiter.ShouldAllowRequest(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Rate limit state unavailable, using local state")
	}
	if !allowed {
		marketRequestsTotal.WithLabelValues(endpoint, "blocked").Inc()
		return nil, ErrRequestBlocked
	}

	// Step 2: Pace outgoing calls
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContextCancelled, err)
	}

	// Step 3: Acquire concurrency slot
	if err := c.gate.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContextCancelled, err)
	}
	defer c.gate.Release(1)

	// Step 4: Set headers
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	// Step 5: Execute HTTP Request with Retry Logic
	c.logger.Debug().
		Str("endpoint", req.URL.Path).
		Str("method", req.Method).
		Msg("Executing upstream request")

	var resp *http.Response
	retryErr := retryWithBackoff(ctx, c.config.Retry, c.logger, func(attempt int) (ErrorClass, error) {
		r, err := c.attempt(req)
		if err != nil {
			errClass := c.classifyError(nil, err)
			marketErrorsTotal.WithLabelValues(string(errClass)).Inc()
			marketRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			c.logger.Warn().
				Err(err).
				Str("endpoint", req.URL.Path).
				Int("attempt", attempt).
				Msg("HTTP request failed")
			return errClass, err
		}
		resp = r
		return "", nil
	})
	if retryErr != nil {
		return nil, retryErr
	}

	status := strconv.Itoa(resp.StatusCode)
	marketRequestsTotal.WithLabelValues(endpoint, status).Inc()

	// Step 6: Classify response
	switch {
	case resp.StatusCode == http.StatusNotModified:
		return resp, nil

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return resp, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		marketErrorsTotal.WithLabelValues(string(ErrorClassRateLimit)).Inc()
		if _, err := c.rateLimiter.RecordRateLimited(ctx, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to store rate limit state")
		}
		return nil, &MarketError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassRateLimit,
			Message:    resp.Status,
			Err:        ErrRateLimited,
		}

	default:
		errClass := c.classifyError(resp, nil)
		marketErrorsTotal.WithLabelValues(string(errClass)).Inc()
		c.logger.Warn().
			Str("endpoint", req.URL.Path).
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Upstream request error")
		return nil, &MarketError{
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    resp.Status,
		}
	}
}

// attempt sends req once under the attempt timeout and buffers the body
// before the timeout context is released.
func (c *Client) attempt(req *http.Request) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(req.Context(), c.config.AttemptTimeout)
	defer cancel()

	resp, err := c.httpClient.Do(req.Clone(ctx))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	return resp, nil
}

// classifyError categorizes an error for observability and handling.
func (c *Client) classifyError(resp *http.Response, err error) ErrorClass {
	if err != nil {
		return ErrorClassNetwork
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return ErrorClassClient
	case resp.StatusCode >= 500:
		return ErrorClassServer
	default:
		// Unexpected 1xx/3xx
		return ErrorClassServer
	}
}

// Get performs a GET request to an upstream path relative to the base URL.
// Unlike Fetch it bypasses the cache and returns upstream errors.
func (c *Client) Get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve(path, nil).String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	return c.Do(req)
}

// Close releases the memory tier. The Redis client is owned by the caller.
func (c *Client) Close() error {
	return c.cache.Close()
}

// Ping checks the Redis store when one is configured.
func (c *Client) Ping(ctx context.Context) error {
	if c.redis == nil {
		return nil
	}
	if err := c.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Cache returns the tiered cache (for testing).
func (c *Client) Cache() *cache.Tiered {
	return c.cache
}

// RateLimiter returns the rate limit tracker.
func (c *Client) RateLimiter() *ratelimit.Tracker {
	return c.rateLimiter
}

// Config returns the client configuration.
func (c *Client) Config() Config {
	return c.config
}

// resolve joins an upstream path and query onto the base URL. path is in
// escaped form, segments built with url.PathEscape.
func (c *Client) resolve(path string, query url.Values) *url.URL {
	u := *c.baseURL
	raw := joinPath(c.baseURL.EscapedPath(), path)
	if unescaped, err := url.PathUnescape(raw); err == nil {
		u.Path = unescaped
		u.RawPath = raw
	} else {
		u.Path = raw
		u.RawPath = ""
	}
	u.RawQuery = query.Encode()
	return &u
}

func joinPath(base, path string) string {
	if base == "" || base == "/" {
		if len(path) > 0 && path[0] != '/' {
			return "/" + path
		}
		return path
	}
	if base[len(base)-1] == '/' {
		base = base[:len(base)-1]
	}
	if len(path) > 0 && path[0] != '/' {
		path = "/" + path
	}
	return base + path
}
