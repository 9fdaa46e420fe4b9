package cache

import (
	"sort"
	"sync"
	"time"
)

// DefaultTTL is applied by Set and by SetWithTTL when ttl is not positive.
const DefaultTTL = 900 * time.Second

// TTLCache is a concurrency-safe in-process key-value store whose entries expire after a
// per-entry TTL. Expired entries are never returned: Get deletes them on access and
// Cleanup sweeps the rest.
type TTLCache[V any] struct {
	mu         sync.Mutex
	entries    map[string]ttlEntry[V]
	defaultTTL time.Duration
	now        func() time.Time
}

type ttlEntry[V any] struct {
	value     V
	storedAt  time.Time
	expiresAt time.Time
}

// NewTTLCache creates an empty cache. A non-positive defaultTTL falls back to DefaultTTL.
func NewTTLCache[V any](defaultTTL time.Duration) *TTLCache[V] {
	return NewTTLCacheWithClock[V](defaultTTL, time.Now)
}

// NewTTLCacheWithClock is NewTTLCache with an injectable clock.
func NewTTLCacheWithClock[V any](defaultTTL time.Duration, now func() time.Time) *TTLCache[V] {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &TTLCache[V]{
		entries:    make(map[string]ttlEntry[V]),
		defaultTTL: defaultTTL,
		now:        now,
	}
}

// Get returns the value for key if present and not expired. An expired entry is removed.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, key)
		return zero, false
	}
	return e.value, true
}

// Set stores value under key with the default TTL.
func (c *TTLCache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL stores value under key, replacing any previous entry and restarting its TTL.
func (c *TTLCache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := c.now()

	c.mu.Lock()
	c.entries[key] = ttlEntry[V]{value: value, storedAt: now, expiresAt: now.Add(ttl)}
	c.mu.Unlock()
}

// Delete removes key. Returns whether an entry was present.
func (c *TTLCache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok
}

// Clear removes every entry.
func (c *TTLCache[V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]ttlEntry[V])
	c.mu.Unlock()
}

// Cleanup removes every expired entry and returns how many were removed.
func (c *TTLCache[V]) Cleanup() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (c *TTLCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Keys returns the stored keys in sorted order.
func (c *TTLCache[V]) Keys() []string {
	c.mu.Lock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	c.mu.Unlock()
	sort.Strings(keys)
	return keys
}

// StoredAt returns when key was last written.
func (c *TTLCache[V]) StoredAt(key string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return e.storedAt, ok
}
