package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemorySize is the default number of entries held in process.
const DefaultMemorySize = 1000

// Memory is the in-process tier: a bounded LRU that never expires entries
// on its own, so stale responses stay available until evicted.
type Memory struct {
	entries *lru.Cache[string, *CacheEntry]
}

// NewMemory creates a memory tier holding at most size entries.
func NewMemory(size int) *Memory {
	if size <= 0 {
		size = DefaultMemorySize
	}
	entries, err := lru.New[string, *CacheEntry](size)
	if err != nil {
		// only fails for non-positive sizes
		panic(err)
	}
	return &Memory{entries: entries}
}

// Get returns a copy of the entry for key, fresh or stale.
func (m *Memory) Get(key CacheKey) (*CacheEntry, bool) {
	entry, ok := m.entries.Get(key.String())
	if !ok {
		return nil, false
	}
	return entry.Clone(), true
}

// Set stores a copy of entry under key.
func (m *Memory) Set(key CacheKey, entry *CacheEntry) {
	if entry == nil {
		return
	}
	m.entries.Add(key.String(), entry.Clone())
	MemoryEntries.Set(float64(m.entries.Len()))
}

// Delete removes the entry for key.
func (m *Memory) Delete(key CacheKey) {
	m.entries.Remove(key.String())
	MemoryEntries.Set(float64(m.entries.Len()))
}

// Len returns the number of entries held.
func (m *Memory) Len() int {
	return m.entries.Len()
}

// Purge drops every entry.
func (m *Memory) Purge() {
	m.entries.Purge()
	MemoryEntries.Set(0)
}
