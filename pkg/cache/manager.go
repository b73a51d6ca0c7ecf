package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// DefaultStaleRetention is how long entries outlive their freshness in Redis.
const DefaultStaleRetention = 24 * time.Hour

// Manager is the Redis store tier.
//
// Entries are kept for Duration + staleRetention so that a stale copy is
// still available when the upstream fails. Freshness is decided by the
// caller from CachedAt and Duration, not by the Redis TTL.
type Manager struct {
	redis          *redis.Client
	staleRetention time.Duration
}

// NewManager creates a new cache manager with Redis backend.
func NewManager(redisClient *redis.Client, staleRetention time.Duration) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if staleRetention < 0 {
		staleRetention = 0
	}
	return &Manager{
		redis:          redisClient,
		staleRetention: staleRetention,
	}
}

// Get retrieves a cache entry by key, fresh or stale.
// Returns ErrCacheMiss if the key doesn't exist.
func (m *Manager) Get(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	data, err := m.redis.Get(ctx, key.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	if entry.CachedAt.IsZero() || len(entry.Data) == 0 {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: missing data or timestamp", ErrInvalidEntry)
	}

	return &entry, nil
}

// Set stores a cache entry. The Redis TTL covers the remaining freshness
// plus the stale retention window.
func (m *Manager) Set(ctx context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry cannot be nil")
	}

	ttl := entry.TTL() + m.staleRetention
	if ttl <= 0 {
		// Neither fresh nor retained, don't cache
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.redis.Set(ctx, key.String(), data, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	return nil
}

// Delete removes a cache entry.
func (m *Manager) Delete(ctx context.Context, key CacheKey) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del: %w", err)
	}

	return nil
}

// UpdateTTL moves an entry's CachedAt to cachedAt and re-saves it, which
// restarts both its freshness window and its Redis TTL.
// Used after a 304 Not Modified response.
func (m *Manager) UpdateTTL(ctx context.Context, key CacheKey, cachedAt time.Time) error {
	entry, err := m.Get(ctx, key)
	if err != nil {
		return err
	}

	entry.CachedAt = cachedAt

	return m.Set(ctx, key, entry)
}

// Ping checks the Redis connection.
func (m *Manager) Ping(ctx context.Context) error {
	if err := m.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
