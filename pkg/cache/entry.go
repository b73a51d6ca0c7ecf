package cache

import (
	"encoding/json"
	"time"
)

// CacheEntry represents a cached upstream response.
type CacheEntry struct {
	// Data is the JSON response body
	Data json.RawMessage `json:"data"`

	// ETag for conditional requests (If-None-Match)
	ETag string `json:"etag,omitempty"`

	// LastModified for conditional requests (If-Modified-Since)
	LastModified time.Time `json:"last_modified,omitempty"`

	// StatusCode is the HTTP status code of the cached response
	StatusCode int `json:"status_code"`

	// CachedAt is when the response was fetched or last revalidated
	CachedAt time.Time `json:"cached_at"`

	// Duration is how long the entry counts as fresh after CachedAt
	Duration time.Duration `json:"duration"`
}

// Age returns how long ago the entry was cached.
func (e *CacheEntry) Age() time.Duration {
	return time.Since(e.CachedAt)
}

// IsFresh reports whether the entry is younger than its duration.
func (e *CacheEntry) IsFresh() bool {
	return e.Age() < e.Duration
}

// ExpiresAt returns when the entry stops being fresh.
func (e *CacheEntry) ExpiresAt() time.Time {
	return e.CachedAt.Add(e.Duration)
}

// TTL returns the remaining freshness.
// Returns 0 if already stale.
func (e *CacheEntry) TTL() time.Duration {
	ttl := time.Until(e.ExpiresAt())
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Clone returns a shallow copy. Data is shared and must not be modified.
func (e *CacheEntry) Clone() *CacheEntry {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}
