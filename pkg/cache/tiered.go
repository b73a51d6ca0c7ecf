package cache

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
)

// Tier names a cache layer.
type Tier string

const (
	TierMemory Tier = "memory"
	TierRedis  Tier = "redis"
)

// Hit is the result of a tier lookup. Entry is nil when no tier had the key.
type Hit struct {
	Entry *CacheEntry
	Tier  Tier
}

// Found reports whether any tier returned an entry.
func (h Hit) Found() bool { return h.Entry != nil }

// Fresh reports whether the entry is still within its duration.
func (h Hit) Fresh() bool { return h.Entry != nil && h.Entry.IsFresh() }

// Tiered consults the memory tier, then the Redis store (L1 -> L2), and
// backfills memory from the store. The store is optional.
//
// Store errors are logged and counted; lookups treat them as misses.
type Tiered struct {
	memory *Memory
	store  *Manager
	logger zerolog.Logger
}

// NewTiered creates a tiered cache. store may be nil for a memory-only setup.
func NewTiered(memory *Memory, store *Manager, logger zerolog.Logger) *Tiered {
	if memory == nil {
		memory = NewMemory(DefaultMemorySize)
	}
	return &Tiered{
		memory: memory,
		store:  store,
		logger: logger,
	}
}

// Lookup returns the best entry for key across tiers.
//
// A fresh memory entry wins. Otherwise a fresh store entry is backfilled
// into memory and returned. Without any fresh entry the newest stale
// candidate is returned (memory first), so callers can revalidate or
// degrade to it. Fresh hits and misses are counted.
func (t *Tiered) Lookup(ctx context.Context, key CacheKey) Hit {
	memEntry, inMemory := t.memory.Get(key)
	if inMemory && memEntry.IsFresh() {
		CacheHits.WithLabelValues(string(TierMemory)).Inc()
		return Hit{Entry: memEntry, Tier: TierMemory}
	}

	storeEntry := t.getStore(ctx, key)
	if storeEntry != nil && storeEntry.IsFresh() {
		t.memory.Set(key, storeEntry)
		CacheHits.WithLabelValues(string(TierRedis)).Inc()
		return Hit{Entry: storeEntry, Tier: TierRedis}
	}

	CacheMisses.Inc()

	switch {
	case inMemory:
		return Hit{Entry: memEntry, Tier: TierMemory}
	case storeEntry != nil:
		return Hit{Entry: storeEntry, Tier: TierRedis}
	default:
		return Hit{}
	}
}

// Fresh returns an entry only while it is within its duration.
func (t *Tiered) Fresh(ctx context.Context, key CacheKey) (Hit, bool) {
	hit := t.Lookup(ctx, key)
	if !hit.Fresh() {
		return Hit{}, false
	}
	return hit, true
}

// Stale returns the newest entry regardless of age, memory first, and
// counts it as a stale serve. A store entry is backfilled into memory.
func (t *Tiered) Stale(ctx context.Context, key CacheKey) (Hit, bool) {
	if entry, ok := t.memory.Get(key); ok {
		StaleServed.WithLabelValues(string(TierMemory)).Inc()
		return Hit{Entry: entry, Tier: TierMemory}, true
	}

	if entry := t.getStore(ctx, key); entry != nil {
		t.memory.Set(key, entry)
		StaleServed.WithLabelValues(string(TierRedis)).Inc()
		return Hit{Entry: entry, Tier: TierRedis}, true
	}

	return Hit{}, false
}

// Store writes entry to both tiers (write-through).
func (t *Tiered) Store(ctx context.Context, key CacheKey, entry *CacheEntry) {
	if entry == nil {
		return
	}

	t.memory.Set(key, entry)

	if t.store == nil {
		return
	}
	if err := t.store.Set(ctx, key, entry); err != nil {
		t.logger.Warn().
			Err(err).
			Str("key", key.String()).
			Msg("Failed to write cache entry to store")
	}
}

// Touch records a 304 revalidation. The memory tier takes entry; in Redis
// only CachedAt moves unless the validators changed or the key is gone, in
// which case entry is written in full.
func (t *Tiered) Touch(ctx context.Context, key CacheKey, prev, entry *CacheEntry) {
	if entry == nil {
		return
	}
	if prev == nil || prev.ETag != entry.ETag || !prev.LastModified.Equal(entry.LastModified) {
		t.Store(ctx, key, entry)
		return
	}

	t.memory.Set(key, entry)

	if t.store == nil {
		return
	}
	err := t.store.UpdateTTL(ctx, key, entry.CachedAt)
	if err == nil {
		return
	}
	if !errors.Is(err, ErrCacheMiss) && !errors.Is(err, ErrInvalidEntry) {
		t.logger.Warn().
			Err(err).
			Str("key", key.String()).
			Msg("Failed to extend cache entry in store")
		return
	}
	t.Store(ctx, key, entry)
}

// Invalidate removes key from both tiers.
func (t *Tiered) Invalidate(ctx context.Context, key CacheKey) {
	t.memory.Delete(key)

	if t.store == nil {
		return
	}
	if err := t.store.Delete(ctx, key); err != nil {
		t.logger.Warn().
			Err(err).
			Str("key", key.String()).
			Msg("Failed to delete cache entry from store")
	}
}

// Memory returns the memory tier.
func (t *Tiered) Memory() *Memory { return t.memory }

// StoreTier returns the Redis tier, or nil when running memory-only.
func (t *Tiered) StoreTier() *Manager { return t.store }

// Close releases the memory tier. The Redis client is owned by the caller.
func (t *Tiered) Close() error {
	t.memory.Purge()
	return nil
}

func (t *Tiered) getStore(ctx context.Context, key CacheKey) *CacheEntry {
	if t.store == nil {
		return nil
	}

	entry, err := t.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			t.logger.Warn().
				Err(err).
				Str("key", key.String()).
				Msg("Cache store lookup failed")
		}
		return nil
	}
	return entry
}
