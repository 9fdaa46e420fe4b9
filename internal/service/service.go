package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/kjstillabower/weather-intelligence-service/internal/cache"
	"github.com/kjstillabower/weather-intelligence-service/internal/client"
	"github.com/kjstillabower/weather-intelligence-service/internal/intelligence"
	"github.com/kjstillabower/weather-intelligence-service/internal/models"
	"github.com/kjstillabower/weather-intelligence-service/internal/observability"
	"github.com/kjstillabower/weather-intelligence-service/internal/validation"
)

const (
	keyPrefix = "weather:"

	DefaultTTL          = 900 * time.Second
	DefaultSearchTTL    = time.Hour
	DefaultFetchTimeout = 10 * time.Second
)

// Options tunes a WeatherService. Zero values use defaults.
type Options struct {
	TTL          time.Duration
	SearchTTL    time.Duration
	ForecastDays int
	// Precision is the number of decimals coordinates are rounded to before keying.
	Precision int
	// FetchTimeout bounds a shared upstream fetch, which outlives any single caller.
	FetchTimeout time.Duration
	// Geocoder is the secondary search provider; nil disables it.
	Geocoder client.Geocoder
	Now      func() time.Time
}

// WeatherService orchestrates weather retrieval with a cache-aside pattern: normalize,
// look up, fetch current and forecast on miss, compute intelligence, store.
type WeatherService struct {
	client       client.WeatherClient
	geocoder     client.Geocoder
	cache        cache.Cache
	searchCache  *cache.TTLCache[[]models.SearchResult]
	ttl          time.Duration
	forecastDays int
	precision    int
	fetchTimeout time.Duration
	now          func() time.Time
	group        singleflight.Group
}

func NewWeatherService(c client.WeatherClient, store cache.Cache, opts Options) *WeatherService {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.SearchTTL <= 0 {
		opts.SearchTTL = DefaultSearchTTL
	}
	if opts.ForecastDays <= 0 {
		opts.ForecastDays = client.DefaultForecastDays
	}
	if opts.Precision < 1 || opts.Precision > validation.MaxPrecision {
		opts.Precision = validation.DefaultPrecision
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &WeatherService{
		client:       c,
		geocoder:     opts.Geocoder,
		cache:        store,
		searchCache:  cache.NewTTLCacheWithClock[[]models.SearchResult](opts.SearchTTL, opts.Now),
		ttl:          opts.TTL,
		forecastDays: opts.ForecastDays,
		precision:    opts.Precision,
		fetchTimeout: opts.FetchTimeout,
		now:          opts.Now,
	}
}

// GetWeather returns the unified result for q. Satisfies cache.WeatherFetcher.
func (s *WeatherService) GetWeather(ctx context.Context, q models.Query) (models.WeatherResult, error) {
	res, _, err := s.Lookup(ctx, q)
	return res, err
}

// Lookup is GetWeather that also reports whether the result came from cache.
// Validation errors are returned before any cache or upstream access.
func (s *WeatherService) Lookup(ctx context.Context, q models.Query) (models.WeatherResult, bool, error) {
	start := time.Now()
	logger := observability.LoggerFrom(ctx)

	key, upstreamQ, err := s.resolve(q)
	if err != nil {
		return models.WeatherResult{}, false, err
	}
	if q.HasCoordinates {
		observability.RecordCoordinateQuery()
	} else {
		observability.RecordWeatherQuery(upstreamQ)
	}

	cached, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		observability.CacheErrorsTotal.WithLabelValues("get").Inc()
		logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		observability.CacheLookupsTotal.WithLabelValues("weather", "hit").Inc()
		logger.Debug("weather served", zap.String("key", key), zap.Bool("cached", true), zap.Duration("duration", time.Since(start)))
		return cached, true, nil
	}
	observability.CacheLookupsTotal.WithLabelValues("weather", "miss").Inc()
	logger.Debug("cache miss, fetching upstream", zap.String("key", key))

	// Concurrent misses for one key share a single fetch. The fetch runs detached from
	// the first caller so its cancellation does not fail the others; each caller still
	// stops waiting when its own context ends.
	ch := s.group.DoChan(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
		defer cancel()
		return s.fetch(fetchCtx, key, upstreamQ)
	})

	select {
	case <-ctx.Done():
		return models.WeatherResult{}, false, ctx.Err()
	case r := <-ch:
		if r.Shared {
			observability.RequestCoalescedTotal.Inc()
		}
		if r.Err != nil {
			logger.Warn("upstream fetch failed",
				zap.String("key", key),
				zap.String("category", string(client.CategorizeError(r.Err))),
				zap.Error(r.Err),
			)
			return models.WeatherResult{}, false, r.Err
		}
		logger.Debug("weather served", zap.String("key", key), zap.Bool("cached", false), zap.Duration("duration", time.Since(start)))
		return r.Val.(models.WeatherResult), false, nil
	}
}

// fetch retrieves current conditions and forecast concurrently. Either failing fails
// the whole fetch and nothing is cached.
func (s *WeatherService) fetch(ctx context.Context, key, q string) (models.WeatherResult, error) {
	var (
		loc  models.Location
		cur  models.CurrentConditions
		days []models.ForecastDay
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		loc, cur, err = s.client.GetCurrent(gctx, q)
		return err
	})
	g.Go(func() error {
		var err error
		days, err = s.client.GetForecast(gctx, q, s.forecastDays)
		return err
	})
	if err := g.Wait(); err != nil {
		return models.WeatherResult{}, fmt.Errorf("fetch weather for %s: %w", q, err)
	}

	intel := intelligence.Generate(models.SnapshotFrom(cur))
	observability.IntelligenceHeadlinesTotal.WithLabelValues(intel.Explanation.Headline).Inc()

	res := models.WeatherResult{
		Location:     loc,
		Current:      cur,
		Forecast:     days,
		Intelligence: intel,
		CachedAt:     s.now().UTC(),
	}
	if err := s.cache.Set(ctx, key, res, s.ttl); err != nil {
		observability.CacheErrorsTotal.WithLabelValues("set").Inc()
		observability.LoggerFrom(ctx).Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return res, nil
}

// resolve validates q and returns its cache key and the upstream query string.
func (s *WeatherService) resolve(q models.Query) (string, string, error) {
	if q.HasCoordinates {
		if !validation.ValidateCoordinates(q.Lat, q.Lon) {
			return "", "", fmt.Errorf("%w: %v,%v", validation.ErrInvalidCoordinates, q.Lat, q.Lon)
		}
		norm := validation.NormalizeCoordinates(q.Lat, q.Lon, s.precision)
		return keyPrefix + norm, norm, nil
	}
	city, err := validation.ValidateLocation(q.City, 1, validation.MaxCityNameLength)
	if err != nil {
		return "", "", err
	}
	return keyPrefix + normalizeLocation(city), city, nil
}

// normalizeLocation lower-cases and trims a city name for keying.
func normalizeLocation(location string) string {
	return strings.ToLower(strings.TrimSpace(location))
}
