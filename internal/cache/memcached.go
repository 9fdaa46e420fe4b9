package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/kjstillabower/weather-intelligence-service/internal/models"
)

const (
	keyPrefix = "wx:"
	// memcached treats relative expirations above 30 days as unix timestamps.
	maxRelativeExpiration = 30 * 24 * 60 * 60
)

// MemcachedCache implements Cache using memcached, letting several service instances
// share fetched results. Values are stored as JSON.
type MemcachedCache struct {
	client     *memcache.Client
	defaultTTL time.Duration
}

// NewMemcachedCache creates a MemcachedCache. addrs is a comma-separated list
// (e.g. "localhost:11211" or "host1:11211,host2:11211"). timeout and maxIdleConns
// fall back to client defaults when zero.
func NewMemcachedCache(addrs string, timeout time.Duration, maxIdleConns int, defaultTTL time.Duration) *MemcachedCache {
	servers := parseAddrs(addrs)
	if len(servers) == 0 {
		servers = []string{"localhost:11211"}
	}
	client := memcache.New(servers...)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if maxIdleConns > 0 {
		client.MaxIdleConns = maxIdleConns
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &MemcachedCache{client: client, defaultTTL: defaultTTL}
}

func parseAddrs(s string) []string {
	var out []string
	for _, a := range strings.Split(s, ",") {
		a = strings.TrimSpace(a)
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// itemKey maps a cache key onto memcached's key alphabet: no spaces or control
// characters, at most 250 bytes.
func itemKey(k string) string {
	k = keyPrefix + strings.Map(func(r rune) rune {
		if r <= ' ' || r == 0x7f {
			return '_'
		}
		return r
	}, k)
	if len(k) > 250 {
		k = k[:250]
	}
	return k
}

// expirationSeconds converts ttl to memcached's relative expiration, clamped to 30 days.
func expirationSeconds(ttl, fallback time.Duration) int32 {
	if ttl <= 0 {
		ttl = fallback
	}
	sec := int64(ttl / time.Second)
	if sec < 1 {
		sec = 1
	}
	if sec > maxRelativeExpiration {
		sec = maxRelativeExpiration
	}
	return int32(sec)
}

// Get returns (data, false, nil) on miss and (zero, false, err) on transport or decode errors.
func (c *MemcachedCache) Get(ctx context.Context, key string) (models.WeatherResult, bool, error) {
	if err := ctx.Err(); err != nil {
		return models.WeatherResult{}, false, err
	}
	item, err := c.client.Get(itemKey(key))
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return models.WeatherResult{}, false, nil
		}
		return models.WeatherResult{}, false, fmt.Errorf("memcached get: %w", err)
	}
	var data models.WeatherResult
	if err := json.Unmarshal(item.Value, &data); err != nil {
		return models.WeatherResult{}, false, fmt.Errorf("decode cached result: %w", err)
	}
	return data, true, nil
}

func (c *MemcachedCache) Set(ctx context.Context, key string, value models.WeatherResult, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := c.client.Set(&memcache.Item{
		Key:        itemKey(key),
		Value:      raw,
		Expiration: expirationSeconds(ttl, c.defaultTTL),
	}); err != nil {
		return fmt.Errorf("memcached set: %w", err)
	}
	return nil
}

func (c *MemcachedCache) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := c.client.Delete(itemKey(key))
	if err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		return fmt.Errorf("memcached delete: %w", err)
	}
	return nil
}

// Ping checks if memcached is reachable. Used for health checks.
func (c *MemcachedCache) Ping() error {
	return c.client.Ping()
}

// Close closes the memcached client connections. Call during shutdown.
func (c *MemcachedCache) Close() error {
	return c.client.Close()
}
