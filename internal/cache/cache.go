package cache

import (
	"strings"
	"sync"
	"time"
)

// TTL presets used across the storage layer
const (
	TTLShort  = 60 * time.Second
	TTLMedium = 5 * time.Minute
	TTLLong   = 10 * time.Minute
)

type entry struct {
	value     interface{}
	expiresAt time.Time
}

// Cache is a simple in-memory key/value cache with per-entry TTL.
// It is safe for concurrent use. Expired entries are dropped lazily
// on read; there is no background eviction.
type Cache struct {
	mu   sync.RWMutex
	data map[string]entry
	now  func() time.Time
}

// New creates an empty cache
func New() *Cache {
	return &Cache{
		data: make(map[string]entry),
		now:  time.Now,
	}
}

// Get returns the cached value for key, or nil if absent or expired
func (c *Cache) Get(key string) interface{} {
	c.mu.RLock()
	e, ok := c.data[key]
	c.mu.RUnlock()

	if !ok {
		return nil
	}
	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.data, key)
		c.mu.Unlock()
		return nil
	}
	return e.value
}

// Set stores value under key for the given TTL
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = entry{value: value, expiresAt: c.now().Add(ttl)}
}

// Delete removes a single key
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// InvalidatePrefix removes all keys that start with prefix
func (c *Cache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.data {
		if strings.HasPrefix(k, prefix) {
			delete(c.data, k)
		}
	}
}

// Clear removes every entry
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]entry)
}
