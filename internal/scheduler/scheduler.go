// Package scheduler runs the service's periodic maintenance jobs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-intelligence-service/internal/observability"
)

// ErrInvalidInterval is returned by Add for a non-positive interval.
var ErrInvalidInterval = errors.New("scheduler: interval must be positive")

// JobFunc is one job execution. ctx is cancelled when the scheduler stops.
type JobFunc func(ctx context.Context) error

// Scheduler wraps gocron. Each job runs in singleton mode so a slow run is never
// overlapped by the next tick.
type Scheduler struct {
	cron   *gocron.Scheduler
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	names []string
}

func New(logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   gocron.NewScheduler(time.UTC),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add registers fn to run every interval, starting as soon as the scheduler starts.
func (s *Scheduler) Add(name string, interval time.Duration, fn JobFunc) error {
	if interval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, name)
	}
	_, err := s.cron.Every(interval).SingletonMode().Tag(name).Do(func() {
		s.run(name, fn)
	})
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	s.mu.Lock()
	s.names = append(s.names, name)
	s.mu.Unlock()
	return nil
}

// Jobs returns the registered job names in registration order.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.names...)
}

// Start begins executing jobs in the background.
func (s *Scheduler) Start() {
	s.logger.Info("scheduler started", zap.Strings("jobs", s.Jobs()))
	s.cron.StartAsync()
}

// Stop cancels running jobs' contexts and stops future executions.
func (s *Scheduler) Stop() {
	s.cancel()
	s.cron.Stop()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run(name string, fn JobFunc) {
	if s.ctx.Err() != nil {
		return
	}
	start := time.Now()
	err := fn(s.ctx)
	if err != nil {
		observability.SchedulerJobRunsTotal.WithLabelValues(name, "error").Inc()
		s.logger.Warn("scheduled job failed",
			zap.String("job", name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return
	}
	observability.SchedulerJobRunsTotal.WithLabelValues(name, "success").Inc()
	s.logger.Debug("scheduled job completed", zap.String("job", name), zap.Duration("duration", time.Since(start)))
}
