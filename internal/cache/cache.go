// Package cache provides a small injected TTL cache used for read-through
// lookups against slow registries (currently the operator directory). The
// cache is a constructor-injected dependency, never a package-level singleton,
// so runs and tests control exactly what is cached.
package cache

import (
	"sync"
	"time"
)

// Cache is the minimal get/set/ttl surface the core depends on.
type Cache[K comparable, V any] interface {
	Get(key K) (V, bool)
	Set(key K, value V, ttl time.Duration)
	Delete(key K)
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTL is an in-memory Cache with per-entry expiry.
type TTL[K comparable, V any] struct {
	mu    sync.RWMutex
	now   func() time.Time
	items map[K]entry[V]
}

// NewTTL constructs an empty TTL cache.
func NewTTL[K comparable, V any]() *TTL[K, V] {
	return &TTL[K, V]{now: time.Now, items: make(map[K]entry[V])}
}

// NewTTLWithClock constructs a TTL cache with an injected clock, for
// deterministic expiry in tests.
func NewTTLWithClock[K comparable, V any](now func() time.Time) *TTL[K, V] {
	return &TTL[K, V]{now: now, items: make(map[K]entry[V])}
}

// Get returns the cached value when present and unexpired.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	var zero V
	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return zero, false
	}
	if !e.expiresAt.IsZero() && c.now().After(e.expiresAt) {
		c.Delete(key)
		return zero, false
	}
	return e.value, true
}

// Set stores value under key. A non-positive ttl stores the entry without
// expiry.
func (c *TTL[K, V]) Set(key K, value V, ttl time.Duration) {
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.items[key] = entry[V]{value: value, expiresAt: expiresAt}
	c.mu.Unlock()
}

// Delete removes key from the cache.
func (c *TTL[K, V]) Delete(key K) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Noop is a Cache that never stores anything. Useful for disabling caching in
// tests without changing call sites.
type Noop[K comparable, V any] struct{}

// Get always misses.
func (Noop[K, V]) Get(K) (V, bool) { var zero V; return zero, false }

// Set discards the value.
func (Noop[K, V]) Set(K, V, time.Duration) {}

// Delete does nothing.
func (Noop[K, V]) Delete(K) {}
