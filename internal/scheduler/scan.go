package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/gamedeck/internal/logger"
	"github.com/MrSnakeDoc/gamedeck/internal/orchestrator"
)

// Scanner runs one reconciliation cycle.
type Scanner interface {
	ScanCycle(ctx context.Context) orchestrator.CycleReport
}

// ScanScheduler runs scan cycles periodically and on demand.
type ScanScheduler struct {
	scanner       Scanner
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

// NewScanScheduler creates a scan scheduler. manualTrigger should be
// buffered with capacity 1 so a pending request coalesces with the next.
func NewScanScheduler(
	scanner Scanner,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *ScanScheduler {
	return &ScanScheduler{
		scanner:       scanner,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start returns at once. The scheduler goroutine runs a first cycle, then
// one per interval and one per manual trigger until Stop or ctx
// cancellation.
func (s *ScanScheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		s.Scan(ctx)
		for {
			select {
			case <-ticker.C:
				s.Scan(ctx)
			case <-s.manualTrigger:
				s.logger.Info("manual scan triggered")
				s.Scan(ctx)
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the scheduler.
func (s *ScanScheduler) Stop() {
	close(s.stopCh)
}

// Scan runs one cycle and logs its outcome.
func (s *ScanScheduler) Scan(ctx context.Context) orchestrator.CycleReport {
	report := s.scanner.ScanCycle(ctx)

	fields := []logger.Field{
		logger.String("cycle_id", report.ID),
		logger.String("outcome", string(report.Outcome)),
		logger.Int("platforms", len(report.Platforms)),
		logger.Duration("duration", report.FinishedAt.Sub(report.StartedAt)),
	}
	if report.Outcome == orchestrator.OutcomeFailure {
		s.logger.Error("scan cycle failed", fields...)
	} else {
		s.logger.Info("scan cycle finished", fields...)
	}
	return report
}
