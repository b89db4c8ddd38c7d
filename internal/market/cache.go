package market

import (
	"sync"
	"time"
)

// cacheEntry is a TTL-bounded, concurrent-read single-writer cache slot
// (spec §5 "Caches ... shared, concurrent-read, per-key single-writer;
// TTL-bounded; eviction is lock-free acceptable"), generalizing the
// mutex-guarded rolling buffer shape used for per-symbol quote state.
type cacheEntry struct {
	value     any
	expiresAt time.Time
}

type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{entries: make(map[string]cacheEntry), ttl: ttl}
}

func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{value: value, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

// Evict drops expired entries; safe to call opportunistically, eviction
// correctness does not depend on timing.
func (c *Cache) Evict() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}
