package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for rate limit tracking.
var (
	rateLimitHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "market_rate_limit_hits_total",
		Help: "Total number of 429 responses received from the upstream",
	})

	rateLimitBlocksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "market_rate_limit_blocks_total",
		Help: "Total number of requests blocked while rate limited",
	})

	rateLimitThrottlesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "market_rate_limit_throttles_total",
		Help: "Total number of requests delayed by client-side pacing",
	})

	rateLimitBlockedSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "market_rate_limit_blocked_seconds",
		Help: "Seconds remaining in the current block window at the last 429",
	})
)

// Config configures pacing and the block window.
type Config struct {
	// RequestsPerSecond paces outgoing calls. <= 0 disables pacing.
	RequestsPerSecond float64

	// Burst is the token bucket size.
	Burst int

	// Cooldown is the block window when a 429 carries no Retry-After.
	Cooldown time.Duration
}

// DefaultConfig matches the CoinGecko public tier (about 30 calls per minute).
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 0.5,
		Burst:             5,
		Cooldown:          DefaultCooldown,
	}
}

// Tracker records upstream 429 responses and gates requests.
//
// With a Redis client the block window is shared between instances;
// without one it is kept in process.
type Tracker struct {
	redis   *redis.Client
	limiter *rate.Limiter
	config  Config
	logger  zerolog.Logger

	mu    sync.Mutex
	local RateLimitState
}

// NewTracker creates a new rate limit tracker. redisClient may be nil.
func NewTracker(redisClient *redis.Client, config Config, logger zerolog.Logger) *Tracker {
	if config.Cooldown <= 0 {
		config.Cooldown = DefaultCooldown
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if config.RequestsPerSecond > 0 {
		burst := config.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}

	return &Tracker{
		redis:   redisClient,
		limiter: limiter,
		config:  config,
		logger:  logger,
	}
}

// RecordRateLimited stores a block window after a 429 response.
// The window comes from Retry-After, or the configured cooldown.
// The in-process state is updated even when Redis fails.
func (t *Tracker) RecordRateLimited(ctx context.Context, headers http.Header) (*RateLimitState, error) {
	now := time.Now()

	cooldown, ok := ParseRetryAfter(headers.Get("Retry-After"), now)
	if !ok {
		cooldown = t.config.Cooldown
	}
	if cooldown > MaxCooldown {
		cooldown = MaxCooldown
	}

	t.mu.Lock()
	blockedUntil := now.Add(cooldown)
	if blockedUntil.After(t.local.BlockedUntil) {
		t.local.BlockedUntil = blockedUntil
	}
	t.local.LastRateLimited = now
	t.local.Hits++
	t.local.LastUpdate = now
	state := t.local
	t.mu.Unlock()

	rateLimitHitsTotal.Inc()
	rateLimitBlockedSeconds.Set(cooldown.Seconds())

	t.logger.Warn().
		Dur("cooldown", cooldown).
		Time("blocked_until", state.BlockedUntil).
		Bool("retry_after", ok).
		Msg("Upstream rate limit hit - blocking requests")

	if t.redis == nil {
		return &state, nil
	}

	// Store in Redis atomically. blocked_until expires with the window.
	pipe := t.redis.TxPipeline()
	if cooldown > 0 {
		pipe.Set(ctx, RedisKeyBlockedUntil, blockedUntil.UnixMilli(), cooldown)
	}
	pipe.Set(ctx, RedisKeyLastRateLimited, now.UnixMilli(), 0)
	hits := pipe.Incr(ctx, RedisKeyHits)
	pipe.Set(ctx, RedisKeyLastUpdate, now.UnixMilli(), 0)

	if _, err := pipe.Exec(ctx); err != nil {
		return &state, fmt.Errorf("store rate limit state in redis: %w", err)
	}
	state.Hits = hits.Val()

	return &state, nil
}

// GetState returns the current rate limit state.
// Redis state is merged with the in-process state; the later block wins.
func (t *Tracker) GetState(ctx context.Context) (*RateLimitState, error) {
	t.mu.Lock()
	state := t.local
	t.mu.Unlock()

	if t.redis == nil {
		return &state, nil
	}

	values, err := t.redis.MGet(ctx,
		RedisKeyBlockedUntil,
		RedisKeyLastRateLimited,
		RedisKeyHits,
		RedisKeyLastUpdate,
	).Result()
	if err != nil {
		return &state, fmt.Errorf("get rate limit state: %w", err)
	}

	if blockedUntil, ok := millisValue(values[0]); ok && blockedUntil.After(state.BlockedUntil) {
		state.BlockedUntil = blockedUntil
	}
	if last, ok := millisValue(values[1]); ok && last.After(state.LastRateLimited) {
		state.LastRateLimited = last
	}
	if hits, ok := intValue(values[2]); ok && hits > state.Hits {
		state.Hits = hits
	}
	if last, ok := millisValue(values[3]); ok && last.After(state.LastUpdate) {
		state.LastUpdate = last
	}

	return &state, nil
}

// ShouldAllowRequest checks if a request should be sent.
// Returns false while a block window is open. If Redis cannot be read the
// decision uses the in-process state and the error is returned alongside.
func (t *Tracker) ShouldAllowRequest(ctx context.Context) (bool, error) {
	state, err := t.GetState(ctx)

	if state.IsBlocked() {
		t.logger.Debug().
			Dur("wait_duration", state.TimeUntilReset()).
			Msg("Upstream rate limited - blocking request")

		rateLimitBlocksTotal.Inc()
		return false, err
	}

	return true, err
}

// Wait blocks until the token bucket allows another upstream call.
func (t *Tracker) Wait(ctx context.Context) error {
	start := time.Now()
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		rateLimitThrottlesTotal.Inc()
		t.logger.Debug().
			Dur("waited", waited).
			Msg("Request paced by client-side rate limit")
	}
	return nil
}

func millisValue(v any) (time.Time, bool) {
	ms, ok := intValue(v)
	if !ok {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

func intValue(v any) (int64, bool) {
	s, ok := v.(string)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
