package main

import (
	"context"
	"time"

	"github.com/kjstillabower/weather-intelligence-service/internal/config"
	"github.com/kjstillabower/weather-intelligence-service/internal/observability"
	"github.com/kjstillabower/weather-intelligence-service/internal/scheduler"
)

type sweeper interface {
	Cleanup() int
}

type searchSweeper interface {
	CleanupSearchCache() int
}

type warmer interface {
	Run(ctx context.Context) error
}

type jobDeps struct {
	cfg *config.Config
	// cache is nil when memcached expires entries itself.
	cache   sweeper
	search  searchSweeper
	limiter sweeper
	warmer  warmer
}

type job struct {
	name     string
	interval time.Duration
	fn       scheduler.JobFunc
}

// maintenanceJobs lists the periodic jobs for deps. Cache warming is included only with a
// positive interval and at least one location.
func maintenanceJobs(deps jobDeps) []job {
	var jobs []job
	if deps.cache != nil {
		jobs = append(jobs, job{"cache-cleanup", deps.cfg.CacheCleanupInterval, func(context.Context) error {
			observability.CacheEvictionsTotal.WithLabelValues("weather").Add(float64(deps.cache.Cleanup()))
			return nil
		}})
	}
	jobs = append(jobs,
		job{"search-cache-cleanup", deps.cfg.CacheCleanupInterval, func(context.Context) error {
			observability.CacheEvictionsTotal.WithLabelValues("search").Add(float64(deps.search.CleanupSearchCache()))
			return nil
		}},
		job{"ratelimit-cleanup", deps.cfg.RateLimitCleanupInterval, func(context.Context) error {
			deps.limiter.Cleanup()
			return nil
		}},
	)
	if deps.cfg.WarmingInterval > 0 && len(deps.cfg.WarmingLocations) > 0 && deps.warmer != nil {
		jobs = append(jobs, job{"cache-warm", deps.cfg.WarmingInterval, deps.warmer.Run})
	}
	return jobs
}
