package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/MrSnakeDoc/gamedeck/internal/adapter"
	"github.com/MrSnakeDoc/gamedeck/internal/domain"
	"github.com/MrSnakeDoc/gamedeck/internal/logger"
)

// RetryPolicy is the explicit per-adapter retry applied to scan calls.
// MaxTries of 1 disables retrying.
type RetryPolicy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxTries == 0 {
		p.MaxTries = 3
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = 500 * time.Millisecond
	}
	if p.MaxInterval < p.InitialInterval {
		p.MaxInterval = max(10*time.Second, p.InitialInterval)
	}
	return p
}

// withRetry runs call with exponential backoff. Every attempt gets its own
// timeout. It returns the number of attempts made.
func withRetry[T any](ctx context.Context, o *Orchestrator, p domain.Platform, kind string, call func(context.Context) (T, error)) (T, int, error) {
	policy := o.opts.Retry

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.InitialInterval
	b.MaxInterval = policy.MaxInterval

	attempts := 0
	op := func() (res T, err error) {
		attempts++
		callCtx, cancel := context.WithTimeout(ctx, o.opts.ScanTimeout)
		defer cancel()
		// A panicking adapter is not retried.
		defer func() {
			if errors.Is(err, adapter.ErrPanic) {
				err = backoff.Permanent(err)
			}
		}()
		defer adapter.Recover(&err)
		return call(callCtx)
	}

	res, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(policy.MaxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			o.logger.Warn("adapter call failed, retrying",
				logger.String("platform", p.String()),
				logger.String("kind", kind),
				logger.Int("attempt", attempts),
				logger.Duration("next_retry_in", next),
				logger.Error(err))
		}),
	)
	return res, attempts, err
}
