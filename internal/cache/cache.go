package cache

import (
	"context"
	"time"

	"github.com/kjstillabower/weather-intelligence-service/internal/models"
)

// Cache defines the interface for weather result caching implementations.
// Get returns cached data if present and not expired, Set stores data with TTL.
type Cache interface {
	Get(ctx context.Context, key string) (models.WeatherResult, bool, error)
	Set(ctx context.Context, key string, value models.WeatherResult, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// InMemoryCache implements Cache on top of a process-local TTLCache.
// Safe for concurrent use. Call Cleanup periodically to bound memory.
type InMemoryCache struct {
	store *TTLCache[models.WeatherResult]
}

// NewInMemoryCache creates an in-memory cache whose Set falls back to defaultTTL.
func NewInMemoryCache(defaultTTL time.Duration) *InMemoryCache {
	return &InMemoryCache{store: NewTTLCache[models.WeatherResult](defaultTTL)}
}

// NewInMemoryCacheWithClock is NewInMemoryCache with an injectable clock for tests.
func NewInMemoryCacheWithClock(defaultTTL time.Duration, now func() time.Time) *InMemoryCache {
	return &InMemoryCache{store: NewTTLCacheWithClock[models.WeatherResult](defaultTTL, now)}
}

// Get returns (data, true, nil) on hit and (zero, false, nil) on miss or expiry.
func (c *InMemoryCache) Get(ctx context.Context, key string) (models.WeatherResult, bool, error) {
	v, ok := c.store.Get(key)
	return v, ok, nil
}

// Set stores the result; a non-positive ttl uses the cache default.
func (c *InMemoryCache) Set(ctx context.Context, key string, value models.WeatherResult, ttl time.Duration) error {
	c.store.SetWithTTL(key, value, ttl)
	return nil
}

func (c *InMemoryCache) Delete(ctx context.Context, key string) error {
	c.store.Delete(key)
	return nil
}

// Cleanup sweeps expired entries. Returns the number removed.
func (c *InMemoryCache) Cleanup() int {
	return c.store.Cleanup()
}

func (c *InMemoryCache) Clear() {
	c.store.Clear()
}

func (c *InMemoryCache) Len() int {
	return c.store.Len()
}

// Keys lists the cached keys, mainly for diagnostics.
func (c *InMemoryCache) Keys() []string {
	return c.store.Keys()
}
