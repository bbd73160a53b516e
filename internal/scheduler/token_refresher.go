package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/gamedeck/internal/logger"
	"github.com/MrSnakeDoc/gamedeck/internal/orchestrator"
)

// DefaultRefreshWindow is how far ahead of expiry a session is refreshed.
const DefaultRefreshWindow = 10 * time.Minute

// Refresher refreshes sessions about to expire.
type Refresher interface {
	RefreshExpiring(ctx context.Context, window time.Duration) []orchestrator.AuthResult
}

// TokenRefresher periodically refreshes sessions that expire within window.
type TokenRefresher struct {
	refresher Refresher
	logger    logger.Logger
	interval  time.Duration
	window    time.Duration
	stopCh    chan struct{}
}

func NewTokenRefresher(
	refresher Refresher,
	log logger.Logger,
	interval time.Duration,
	window time.Duration,
) *TokenRefresher {
	if window <= 0 {
		window = DefaultRefreshWindow
	}
	return &TokenRefresher{
		refresher: refresher,
		logger:    log,
		interval:  interval,
		window:    window,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the periodic refresh in the background. The first pass
// runs right away so sessions restored near expiry are renewed at startup.
func (tr *TokenRefresher) Start(ctx context.Context) error {
	ticker := time.NewTicker(tr.interval)
	go func() {
		defer ticker.Stop()
		tr.Refresh(ctx)
		for {
			select {
			case <-ticker.C:
				tr.Refresh(ctx)
			case <-tr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the refresher.
func (tr *TokenRefresher) Stop() {
	close(tr.stopCh)
}

// Refresh runs one refresh pass and returns the number of failures.
func (tr *TokenRefresher) Refresh(ctx context.Context) int {
	results := tr.refresher.RefreshExpiring(ctx, tr.window)
	if len(results) == 0 {
		tr.logger.Debug("no sessions due for refresh")
		return 0
	}

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	tr.logger.Info("token refresh pass completed",
		logger.Int("due", len(results)),
		logger.Int("failed", failed))
	return failed
}
