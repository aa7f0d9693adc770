// Package scheduler runs the periodic asset cache refresh.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// Refresher re-installs and activates a cache.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Scheduler triggers Refresh every interval. A zero interval disables it.
type Scheduler struct {
	refresher Refresher
	interval  time.Duration
	timeout   time.Duration
	logger    *zap.Logger
	scheduler *gocron.Scheduler
}

// New creates a scheduler. Each run gets at most timeout to finish.
func New(refresher Refresher, interval, timeout time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		refresher: refresher,
		interval:  interval,
		timeout:   timeout,
		logger:    logger,
		scheduler: s,
	}
}

// Start schedules the refresh job. The first run happens one interval after Start.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.logger.Info("asset cache refresh disabled")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).WaitForSchedule().Do(s.run)
	if err != nil {
		return fmt.Errorf("schedule asset refresh: %w", err)
	}

	s.scheduler.StartAsync()
	s.logger.Info("asset cache refresh scheduled", zap.Duration("interval", s.interval))
	return nil
}

// Stop stops the scheduler; it is safe to call when Start was a no-op.
func (s *Scheduler) Stop() {
	if s.scheduler.IsRunning() {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) run() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := s.refresher.Refresh(ctx); err != nil {
		s.logger.Error("asset cache refresh failed", zap.Error(err))
		return
	}
	s.logger.Info("asset cache refreshed", zap.Duration("duration", time.Since(start)))
}
