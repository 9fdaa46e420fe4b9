//go:build integration
// +build integration

// Package testhelpers builds real service stacks for integration tests.
package testhelpers

import (
	"os"
	"testing"
	"time"

	"github.com/kjstillabower/weather-intelligence-service/internal/cache"
	"github.com/kjstillabower/weather-intelligence-service/internal/client"
	"github.com/kjstillabower/weather-intelligence-service/internal/service"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	APIKey        string
	APIURL        string
	CacheBackend  string // "in_memory" or "memcached"
	MemcachedAddr string
	// Geocoding enables the Nominatim fallback for search.
	Geocoding bool
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips the test if WEATHER_API_KEY is not set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	apiKey := os.Getenv("WEATHER_API_KEY")
	if apiKey == "" {
		t.Skip("WEATHER_API_KEY not set, skipping integration test")
	}

	apiURL := os.Getenv("WEATHER_API_URL")
	if apiURL == "" {
		apiURL = client.DefaultAPIURL
	}
	memcachedAddr := os.Getenv("MEMCACHED_ADDRS")
	if memcachedAddr == "" {
		memcachedAddr = "localhost:11211"
	}

	return IntegrationTestConfig{
		APIKey:        apiKey,
		APIURL:        apiURL,
		CacheBackend:  os.Getenv("INTEGRATION_CACHE_BACKEND"),
		MemcachedAddr: memcachedAddr,
		Geocoding:     os.Getenv("NOMINATIM_INTEGRATION") != "",
	}
}

// SetupIntegrationClient creates a weatherapi.com client for integration tests.
func SetupIntegrationClient(t *testing.T, cfg IntegrationTestConfig) *client.WeatherAPIClient {
	t.Helper()
	c, err := client.NewWeatherAPIClient(cfg.APIKey, client.Options{APIURL: cfg.APIURL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewWeatherAPIClient() error = %v", err)
	}
	return c
}

// SetupIntegrationService creates a fully configured service for integration tests.
// Falls back to the in-memory cache when memcached is requested but unreachable.
func SetupIntegrationService(t *testing.T, cfg IntegrationTestConfig) (*service.WeatherService, cache.Cache) {
	t.Helper()
	weatherClient := SetupIntegrationClient(t, cfg)

	var store cache.Cache = cache.NewInMemoryCache(service.DefaultTTL)
	if cfg.CacheBackend == "memcached" {
		mc := cache.NewMemcachedCache(cfg.MemcachedAddr, 500*time.Millisecond, 2, service.DefaultTTL)
		if err := mc.Ping(); err != nil {
			t.Logf("memcached not available (%v), using in-memory cache", err)
			_ = mc.Close()
		} else {
			t.Logf("using memcached cache at %s", cfg.MemcachedAddr)
			t.Cleanup(func() { _ = mc.Close() })
			store = mc
		}
	}

	opts := service.Options{FetchTimeout: 10 * time.Second}
	if cfg.Geocoding {
		opts.Geocoder = client.NewNominatimClient("", "weather-intelligence-service-integration/1.0", 5*time.Second)
	}
	return service.NewWeatherService(weatherClient, store, opts), store
}
