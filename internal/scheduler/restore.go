package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/gamedeck/internal/logger"
)

// Restorable is a store that reloads its state from the backend.
type Restorable interface {
	Restore(ctx context.Context) (int, error)
}

// StateRestorer loads every store's persisted state at startup.
type StateRestorer struct {
	stores map[string]Restorable
	order  []string
	logger logger.Logger
}

func NewStateRestorer(log logger.Logger) *StateRestorer {
	return &StateRestorer{
		stores: make(map[string]Restorable),
		logger: log,
	}
}

// Add registers a store under a name used in logs.
func (sr *StateRestorer) Add(name string, store Restorable) *StateRestorer {
	if _, ok := sr.stores[name]; !ok {
		sr.order = append(sr.order, name)
	}
	sr.stores[name] = store
	return sr
}

// Restore loads every registered store in registration order. A failing
// store does not stop the others; its error is returned joined with the
// rest. Stores keep refusing to persist until their own Restore succeeds.
func (sr *StateRestorer) Restore(ctx context.Context) (map[string]int, error) {
	sr.logger.Info("restoring persisted state")

	counts := make(map[string]int, len(sr.order))
	var errs []error
	for _, name := range sr.order {
		n, err := sr.stores[name].Restore(ctx)
		if err != nil {
			sr.logger.Warn("failed to restore state",
				logger.String("store", name),
				logger.Error(err))
			errs = append(errs, fmt.Errorf("restore %s: %w", name, err))
			continue
		}
		counts[name] = n
		sr.logger.Info("restored state",
			logger.String("store", name),
			logger.Int("count", n))
	}

	return counts, errors.Join(errs...)
}
