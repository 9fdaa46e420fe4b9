package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-intelligence-service/internal/cache"
	"github.com/kjstillabower/weather-intelligence-service/internal/client"
	"github.com/kjstillabower/weather-intelligence-service/internal/config"
	httphandler "github.com/kjstillabower/weather-intelligence-service/internal/http"
	"github.com/kjstillabower/weather-intelligence-service/internal/lifecycle"
	"github.com/kjstillabower/weather-intelligence-service/internal/observability"
	"github.com/kjstillabower/weather-intelligence-service/internal/ratelimit"
	"github.com/kjstillabower/weather-intelligence-service/internal/scheduler"
	"github.com/kjstillabower/weather-intelligence-service/internal/service"
	"github.com/kjstillabower/weather-intelligence-service/internal/traffic"
)

const inFlightCheckInterval = 100 * time.Millisecond

func main() {
	envErr := godotenv.Load()

	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	switch {
	case envErr == nil:
		logger.Info("loaded .env")
	case os.IsNotExist(envErr):
		logger.Info("no .env file, using process environment")
	default:
		logger.Warn("failed to load .env", zap.Error(envErr))
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}
	if os.Getenv("LOG_LEVEL") == "" && cfg.LogLevel != "" {
		if l, err := observability.NewLoggerWithLevel(cfg.LogLevel); err == nil {
			logger = l
		}
	}

	weatherClient, err := client.NewWeatherAPIClient(cfg.WeatherAPIKey, client.Options{
		APIURL:         cfg.WeatherAPIURL,
		Timeout:        cfg.WeatherAPITimeout,
		RetryAttempts:  cfg.RetryAttempts,
		RetryBaseDelay: cfg.RetryBaseDelay,
		RetryMaxDelay:  cfg.RetryMaxDelay,
		Breaker: client.BreakerSettings{
			Enabled:          cfg.BreakerEnabled,
			FailureThreshold: uint32(cfg.BreakerFailureThreshold),
			Timeout:          cfg.BreakerTimeout,
		},
	})
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}
	logger.Info("circuit breaker configured",
		zap.Bool("enabled", cfg.BreakerEnabled),
		zap.Int("failure_threshold", cfg.BreakerFailureThreshold),
		zap.Duration("timeout", cfg.BreakerTimeout))

	validateCtx, validateCancel := context.WithTimeout(context.Background(), cfg.WeatherAPITimeout)
	if err := weatherClient.ValidateAPIKey(validateCtx); err != nil {
		logger.Warn("weather API key check failed", zap.Error(err))
	}
	validateCancel()

	var (
		store     cache.Cache
		memcached *cache.MemcachedCache
		inMemory  *cache.InMemoryCache
	)
	switch cfg.CacheBackend {
	case config.BackendMemcached:
		memcached = cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns, cfg.CacheTTL)
		store = memcached
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		inMemory = cache.NewInMemoryCache(cfg.CacheTTL)
		store = inMemory
		logger.Info("cache backend: in_memory")
	}

	opts := service.Options{
		TTL:          cfg.CacheTTL,
		SearchTTL:    cfg.SearchTTL,
		ForecastDays: cfg.ForecastDays,
		Precision:    cfg.CoordinatePrecision,
		FetchTimeout: cfg.RequestTimeout,
	}
	if cfg.GeocodingEnabled {
		opts.Geocoder = client.NewNominatimClient(cfg.NominatimURL, cfg.GeocodingUserAgent, cfg.WeatherAPITimeout)
	}
	weatherService := service.NewWeatherService(weatherClient, store, opts)

	clientLimiter := ratelimit.New(cfg.RateLimitMaxRequests, cfg.RateLimitWindow)
	var globalLimiter *rate.Limiter
	if cfg.GlobalRPS > 0 {
		globalLimiter = rate.NewLimiter(rate.Limit(cfg.GlobalRPS), cfg.GlobalBurst)
	}

	if len(cfg.TrackedLocations) > 0 {
		observability.SetTrackedLocations(cfg.TrackedLocations)
	}
	registerGauges(inMemory, weatherService, clientLimiter)

	deps := jobDeps{
		cfg:     cfg,
		search:  weatherService,
		limiter: clientLimiter,
		warmer:  cache.NewCacheWarmer(weatherService, cfg.WarmingLocations, logger),
	}
	if inMemory != nil {
		deps.cache = inMemory
	}
	sched := scheduler.New(logger)
	for _, j := range maintenanceJobs(deps) {
		if err := sched.Add(j.name, j.interval, j.fn); err != nil {
			logger.Fatal("schedule job", zap.String("job", j.name), zap.Error(err))
		}
	}
	sched.Start()

	state := lifecycle.New()
	health := httphandler.HealthConfig{
		Window:            cfg.HealthWindow,
		DegradedErrorPct:  cfg.HealthDegradedErrorPct,
		OverloadDeniedPct: cfg.HealthOverloadDeniedPct,
		MinSamples:        cfg.HealthMinSamples,
		BreakerState:      weatherClient.BreakerState,
		Version:           cfg.Version,
	}
	if memcached != nil {
		health.CachePing = memcached.Ping
	}
	handler := httphandler.NewHandler(weatherService, traffic.NewTracker(), state, health, logger)

	inFlight := &httphandler.InFlightTracker{}
	router := httphandler.NewRouter(handler, httphandler.RouterConfig{
		Logger:         logger,
		InFlight:       inFlight,
		ClientLimiter:  clientLimiter,
		GlobalLimiter:  globalLimiter,
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("version", cfg.Version))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	state.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight.Count()))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.InFlightTimeout)
	defer waitCancel()
	if err := inFlight.WaitForZero(waitCtx, inFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", inFlight.Count()))
	}

	sched.Stop()

	// A nil *MemcachedCache must not reach FlushTelemetry as a non-nil io.Closer.
	var closeErr error
	if memcached != nil {
		closeErr = observability.FlushTelemetry(context.Background(), logger, memcached)
	} else {
		closeErr = observability.FlushTelemetry(context.Background(), logger)
	}
	if closeErr != nil {
		logger.Error("telemetry flush", zap.Error(closeErr))
	}
	logger.Info("shutdown complete")
}

// registerGauges exposes component sizes on /metrics. inMemory is nil with memcached.
func registerGauges(inMemory *cache.InMemoryCache, svc *service.WeatherService, limiter *ratelimit.Limiter) {
	if inMemory != nil {
		observability.RegisterGaugeFunc("cacheEntries", "Entries in the in-memory weather cache",
			func() float64 { return float64(inMemory.Len()) })
	}
	observability.RegisterGaugeFunc("searchCacheEntries", "Entries in the location search cache",
		func() float64 { return float64(svc.SearchCacheLen()) })
	observability.RegisterGaugeFunc("rateLimitTrackedClients", "Clients with an active rate limit window",
		func() float64 { return float64(limiter.Len()) })
}
