package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-intelligence-service/internal/models"
	"github.com/kjstillabower/weather-intelligence-service/internal/observability"
)

// WeatherFetcher is implemented by the service layer; a successful fetch leaves the
// result cached. Declared here to avoid an import cycle with the service package.
type WeatherFetcher interface {
	GetWeather(ctx context.Context, q models.Query) (models.WeatherResult, error)
}

// CacheWarmer prefetches weather for a fixed list of city names so popular lookups hit cache.
type CacheWarmer struct {
	fetcher   WeatherFetcher
	logger    *zap.Logger
	locations []string
}

// NewCacheWarmer creates a CacheWarmer. A nil logger disables logging.
func NewCacheWarmer(fetcher WeatherFetcher, locations []string, logger *zap.Logger) *CacheWarmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheWarmer{fetcher: fetcher, logger: logger, locations: locations}
}

// Run warms the configured locations. Suitable as a scheduled job.
func (w *CacheWarmer) Run(ctx context.Context) error {
	return w.Warm(ctx, w.locations)
}

// Warm fetches each location concurrently through the fetcher.
// Returns the joined errors of every location that failed.
func (w *CacheWarmer) Warm(ctx context.Context, locations []string) error {
	start := time.Now()
	observability.CacheWarmingTotal.Inc()
	w.logger.Info("warming cache", zap.Int("locations", len(locations)))

	var wg sync.WaitGroup
	errCh := make(chan error, len(locations))
	for _, loc := range locations {
		wg.Add(1)
		go func(loc string) {
			defer wg.Done()
			if _, err := w.fetcher.GetWeather(ctx, models.CityQuery(loc)); err != nil {
				errCh <- fmt.Errorf("warm %s: %w", loc, err)
			}
		}(loc)
	}
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	duration := time.Since(start).Seconds()
	observability.CacheWarmingDurationSeconds.Observe(duration)
	w.logger.Info("cache warming complete",
		zap.Int("locations", len(locations)),
		zap.Int("errors", len(errs)),
		zap.Float64("duration_seconds", duration),
	)
	if len(errs) > 0 {
		observability.CacheWarmingErrorsTotal.Inc()
		return fmt.Errorf("cache warming: %w", errors.Join(errs...))
	}
	return nil
}
