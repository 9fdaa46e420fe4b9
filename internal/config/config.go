package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendInMemory  = "in_memory"
	BackendMemcached = "memcached"

	minPrecision = 1
	maxPrecision = 4
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort     string
	RequestTimeout time.Duration
	LogLevel       string
	Version        string

	WeatherAPIKey      string
	WeatherAPIURL      string
	WeatherAPITimeout  time.Duration
	ForecastDays       int
	GeocodingEnabled   bool
	NominatimURL       string
	GeocodingUserAgent string

	CacheBackend         string // "in_memory" or "memcached"
	CacheTTL             time.Duration
	CacheCleanupInterval time.Duration
	CoordinatePrecision  int
	SearchTTL            time.Duration

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RateLimitMaxRequests     int
	RateLimitWindow          time.Duration
	RateLimitCleanupInterval time.Duration

	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	GlobalRPS      int
	GlobalBurst    int

	BreakerEnabled          bool
	BreakerFailureThreshold int
	BreakerTimeout          time.Duration

	ShutdownTimeout time.Duration
	InFlightTimeout time.Duration

	HealthWindow            time.Duration
	HealthDegradedErrorPct  int
	HealthOverloadDeniedPct int
	HealthMinSamples        int

	WarmingLocations []string
	WarmingInterval  time.Duration

	TrackedLocations []string
}

type fileConfig struct {
	Server struct {
		Port     string `yaml:"port"`
		LogLevel string `yaml:"log_level"`
		Version  string `yaml:"version"`
	} `yaml:"server"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	WeatherAPI struct {
		URL          string `yaml:"url"`
		Timeout      string `yaml:"timeout"`
		ForecastDays int    `yaml:"forecast_days"`
	} `yaml:"weather_api"`

	Geocoding struct {
		Enabled      *bool  `yaml:"enabled"`
		NominatimURL string `yaml:"nominatim_url"`
		UserAgent    string `yaml:"user_agent"`
	} `yaml:"geocoding"`

	Cache struct {
		Backend             string `yaml:"backend"`
		TTL                 string `yaml:"ttl"`
		CleanupInterval     string `yaml:"cleanup_interval"`
		CoordinatePrecision int    `yaml:"coordinate_precision"`
		SearchTTL           string `yaml:"search_ttl"`
		Memcached           struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	RateLimit struct {
		MaxRequests     int    `yaml:"max_requests"`
		Window          string `yaml:"window"`
		CleanupInterval string `yaml:"cleanup_interval"`
	} `yaml:"rate_limit"`

	Reliability struct {
		RetryMaxAttempts int    `yaml:"retry_max_attempts"`
		RetryBaseDelay   string `yaml:"retry_base_delay"`
		RetryMaxDelay    string `yaml:"retry_max_delay"`
		GlobalRPS        int    `yaml:"global_rps"`
		GlobalBurst      int    `yaml:"global_burst"`
		CircuitBreaker   struct {
			Enabled          *bool  `yaml:"enabled"`
			FailureThreshold int    `yaml:"failure_threshold"`
			Timeout          string `yaml:"timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"reliability"`

	Shutdown struct {
		Timeout         string `yaml:"timeout"`
		InFlightTimeout string `yaml:"in_flight_timeout"`
	} `yaml:"shutdown"`

	Health struct {
		Window            string `yaml:"window"`
		DegradedErrorPct  int    `yaml:"degraded_error_pct"`
		OverloadDeniedPct int    `yaml:"overload_denied_pct"`
		MinSamples        int    `yaml:"min_samples"`
	} `yaml:"health"`

	Warming struct {
		Locations []string `yaml:"locations"`
		Interval  string   `yaml:"interval"`
	} `yaml:"warming"`

	Metrics struct {
		TrackedLocations []string `yaml:"tracked_locations"`
	} `yaml:"metrics"`
}

type secretsFile struct {
	WeatherAPIKey string `yaml:"weather_api_key"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and config/secrets.yaml
// under the working directory. Call from project root.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	return LoadFrom(cwd)
}

// LoadFrom is Load rooted at dir. API key comes from WEATHER_API_KEY env or the secrets file.
func LoadFrom(dir string) (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	configPath := filepath.Join(dir, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}
	cfg.WeatherAPIKey, err = loadAPIKey(dir)
	if err != nil {
		return nil, err
	}
	if cfg.WeatherAPIKey == "" {
		return nil, fmt.Errorf("WEATHER_API_KEY required (set env or config/secrets.yaml weather_api_key)")
	}

	cfg.ServerPort = stringOr(fc.Server.Port, "8080")
	cfg.LogLevel = stringOr(fc.Server.LogLevel, "info")
	cfg.Version = stringOr(fc.Server.Version, "dev")
	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 5*time.Second)

	cfg.WeatherAPIURL = stringOr(fc.WeatherAPI.URL, "https://api.weatherapi.com/v1")
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.WeatherAPI.Timeout, 3*time.Second)
	cfg.ForecastDays = intOr(fc.WeatherAPI.ForecastDays, 7)

	cfg.GeocodingEnabled = boolOr(fc.Geocoding.Enabled, true)
	cfg.NominatimURL = stringOr(fc.Geocoding.NominatimURL, "https://nominatim.openstreetmap.org/search")
	cfg.GeocodingUserAgent = stringOr(fc.Geocoding.UserAgent, "weather-intelligence-service/1.0")

	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = BackendInMemory
	}
	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 15*time.Minute)
	cfg.CacheCleanupInterval = parseDuration(fc.Cache.CleanupInterval, 5*time.Minute)
	cfg.CoordinatePrecision = fc.Cache.CoordinatePrecision
	if cfg.CoordinatePrecision == 0 {
		cfg.CoordinatePrecision = 3
	}
	cfg.SearchTTL = parseDuration(fc.Cache.SearchTTL, time.Hour)
	cfg.MemcachedAddrs = stringOr(fc.Cache.Memcached.Addrs, "localhost:11211")
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = intOr(fc.Cache.Memcached.MaxIdleConns, 2)

	cfg.RateLimitMaxRequests = intOr(fc.RateLimit.MaxRequests, 60)
	cfg.RateLimitWindow = parseDuration(fc.RateLimit.Window, time.Minute)
	cfg.RateLimitCleanupInterval = parseDuration(fc.RateLimit.CleanupInterval, time.Minute)

	cfg.RetryAttempts = intOr(fc.Reliability.RetryMaxAttempts, 1)
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 100*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 2*time.Second)
	cfg.GlobalRPS = intOr(fc.Reliability.GlobalRPS, 100)
	cfg.GlobalBurst = intOr(fc.Reliability.GlobalBurst, 250)
	cfg.BreakerEnabled = boolOr(fc.Reliability.CircuitBreaker.Enabled, true)
	cfg.BreakerFailureThreshold = intOr(fc.Reliability.CircuitBreaker.FailureThreshold, 5)
	cfg.BreakerTimeout = parseDuration(fc.Reliability.CircuitBreaker.Timeout, 30*time.Second)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.InFlightTimeout = parseDuration(fc.Shutdown.InFlightTimeout, 10*time.Second)

	cfg.HealthWindow = parseDuration(fc.Health.Window, 60*time.Second)
	cfg.HealthDegradedErrorPct = intOr(fc.Health.DegradedErrorPct, 50)
	cfg.HealthOverloadDeniedPct = intOr(fc.Health.OverloadDeniedPct, 80)
	cfg.HealthMinSamples = intOr(fc.Health.MinSamples, 10)

	cfg.WarmingLocations = fc.Warming.Locations
	cfg.WarmingInterval = parseDurationOrZero(fc.Warming.Interval, 0)
	cfg.TrackedLocations = fc.Metrics.TrackedLocations

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadAPIKey returns WEATHER_API_KEY, falling back to config/secrets.yaml. A missing
// secrets file is not an error.
func loadAPIKey(dir string) (string, error) {
	if key := strings.TrimSpace(os.Getenv("WEATHER_API_KEY")); key != "" {
		return key, nil
	}
	data, err := os.ReadFile(filepath.Join(dir, "config", "secrets.yaml"))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read secrets file: %w", err)
	}
	var sec secretsFile
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return "", fmt.Errorf("parse secrets file: %w", err)
	}
	return strings.TrimSpace(sec.WeatherAPIKey), nil
}

func stringOr(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}

func intOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation. RequestTimeout is raised to exceed the upstream
// timeout rather than rejected.
func validate(cfg *Config) error {
	if cfg.WeatherAPITimeout <= 0 {
		return fmt.Errorf("weather_api.timeout must be positive")
	}
	if cfg.RequestTimeout <= cfg.WeatherAPITimeout {
		cfg.RequestTimeout = cfg.WeatherAPITimeout + time.Second
	}
	switch cfg.CacheBackend {
	case BackendInMemory, BackendMemcached:
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	if cfg.CoordinatePrecision < minPrecision || cfg.CoordinatePrecision > maxPrecision {
		return fmt.Errorf("cache.coordinate_precision must be between %d and %d, got %d",
			minPrecision, maxPrecision, cfg.CoordinatePrecision)
	}
	if cfg.WarmingInterval < 0 {
		return fmt.Errorf("warming.interval must not be negative")
	}
	if cfg.HealthDegradedErrorPct > 100 || cfg.HealthOverloadDeniedPct > 100 {
		return fmt.Errorf("health thresholds must be percentages (0-100)")
	}
	return nil
}
