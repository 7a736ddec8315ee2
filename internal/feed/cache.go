package feed

import (
	"sync"
	"time"
)

// Cache is a small in-memory TTL cache guarding the upstream tracker
// against overlapping fetches (ticker cycle plus an operator-triggered
// refresh hitting the API in the same moment).
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

type cacheEntry struct {
	value     []Report
	expiresAt time.Time
}

// NewCache creates a cache with the given TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

// Get retrieves a cached report set if it exists and hasn't expired.
func (c *Cache) Get(key string) ([]Report, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.value, true
}

// Set stores a report set in the cache.
func (c *Cache) Set(key string, value []Report) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(c.ttl),
	}
}
