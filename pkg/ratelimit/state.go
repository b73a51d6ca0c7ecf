// Package ratelimit tracks upstream 429 responses and gates outgoing
// requests. The block window is read from Retry-After (or a configured
// cooldown) and shared across client instances via Redis.
package ratelimit

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Redis keys for rate limit state storage.
const (
	RedisKeyBlockedUntil    = "market:rate_limit:blocked_until"
	RedisKeyLastRateLimited = "market:rate_limit:last_rate_limited"
	RedisKeyHits            = "market:rate_limit:hits"
	RedisKeyLastUpdate      = "market:rate_limit:last_update"
)

const (
	// DefaultCooldown is the block window when a 429 carries no Retry-After.
	DefaultCooldown = 60 * time.Second

	// MaxCooldown caps the block window taken from Retry-After.
	MaxCooldown = 10 * time.Minute
)

// RateLimitState represents the current upstream rate limit state.
// This state is shared across all client instances via Redis.
type RateLimitState struct {
	// BlockedUntil is when requests may be sent again.
	// Zero when no 429 is in effect.
	BlockedUntil time.Time `json:"blocked_until"`

	// LastRateLimited is when the upstream last answered 429.
	LastRateLimited time.Time `json:"last_rate_limited"`

	// Hits is the number of 429 responses recorded.
	Hits int64 `json:"hits"`

	// LastUpdate is when this state was last written.
	LastUpdate time.Time `json:"last_update"`
}

// IsBlocked reports whether the block window is still open.
func (s *RateLimitState) IsBlocked() bool {
	return time.Now().Before(s.BlockedUntil)
}

// TimeUntilReset returns the duration until requests are allowed again.
// Returns 0 if the block has already passed.
func (s *RateLimitState) TimeUntilReset() time.Duration {
	duration := time.Until(s.BlockedUntil)
	if duration < 0 {
		return 0
	}
	return duration
}

// ParseRetryAfter reads a Retry-After value given either as delay seconds
// or as an HTTP date. ok is false for a missing or malformed value.
func ParseRetryAfter(value string, now time.Time) (delay time.Duration, ok bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}

	at, err := http.ParseTime(value)
	if err != nil {
		return 0, false
	}
	delay = at.Sub(now)
	if delay < 0 {
		delay = 0
	}
	return delay, true
}
