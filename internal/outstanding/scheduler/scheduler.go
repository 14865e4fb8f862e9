package scheduler

import (
	"context"
	"sync"
	"time"

	"inbox-triage/internal/outstanding/usecase"

	"go.uber.org/zap"
)

// Sweeper is the part of usecase.Sweeper the scheduler drives.
type Sweeper interface {
	Sweep(ctx context.Context, opts usecase.Options) (*usecase.Report, error)
}

// SweepScheduler runs the outstanding sweep on a fixed interval while the
// approval server is up. Cadence for batch deployments stays external.
type SweepScheduler struct {
	sweeper  Sweeper
	options  func() usecase.Options
	interval time.Duration
	logger   *zap.Logger

	stopOnce sync.Once
	stopChan chan struct{}
	done     chan struct{}
}

// NewSweepScheduler builds a scheduler. options is called before every sweep
// so each run gets a fresh Now.
func NewSweepScheduler(sweeper Sweeper, interval time.Duration, options func() usecase.Options, logger *zap.Logger) *SweepScheduler {
	return &SweepScheduler{
		sweeper:  sweeper,
		options:  options,
		interval: interval,
		logger:   logger.Named("sweep_scheduler"),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the loop. A non-positive interval disables the scheduler.
func (s *SweepScheduler) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("sweep scheduler disabled")
		close(s.done)
		return
	}

	s.logger.Info("starting sweep scheduler", zap.Duration("interval", s.interval))
	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runOnce(ctx)
			case <-ctx.Done():
				return
			case <-s.stopChan:
				s.logger.Info("sweep scheduler stopped")
				return
			}
		}
	}()
}

// Stop ends the loop and waits for an in-flight sweep to finish.
func (s *SweepScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	<-s.done
}

func (s *SweepScheduler) runOnce(ctx context.Context) {
	report, err := s.sweeper.Sweep(ctx, s.options())
	if err != nil {
		s.logger.Error("scheduled sweep failed", zap.Error(err))
		return
	}
	s.logger.Debug("scheduled sweep done",
		zap.Int("stale", report.Totals.StaleDrafts),
		zap.Int("unanswered", report.Totals.UnansweredSalesLeads))
}
