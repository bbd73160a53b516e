// Package ledger tracks the add-on content owned per game per platform and
// the shared install locations set up for a game.
//
// Ownership sets only grow through RegisterOwned; shrinking is an explicit
// RemoveOwned. The ledger is a placement signal and never decides launch
// eligibility.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/MrSnakeDoc/gamedeck/internal/domain"
	"github.com/MrSnakeDoc/gamedeck/internal/logger"
	"github.com/MrSnakeDoc/gamedeck/internal/state"
)

type contentSet map[string]struct{}

type gameContent struct {
	owned  map[domain.Platform]contentSet
	shared map[domain.Platform]string
}

// Ledger is keyed by canonical game key.
type Ledger struct {
	mu    sync.RWMutex
	games map[string]*gameContent

	// unread is set while the stored record could not be restored.
	unread error

	backend state.Backend
	logger  logger.Logger
}

// New creates an empty ledger. Call Restore to load the persisted record.
func New(backend state.Backend, log logger.Logger) *Ledger {
	return &Ledger{
		games:   make(map[string]*gameContent),
		backend: backend,
		logger:  log,
	}
}

// RegisterOwned unions ids into the owned set of (game, platform) and
// returns how many were new. Blank ids are ignored. Nothing is written
// when the set is unchanged.
func (l *Ledger) RegisterOwned(ctx context.Context, gameKey string, p domain.Platform, ids []string) (int, error) {
	key := domain.CanonicalKey(gameKey)
	if key == "" {
		return 0, fmt.Errorf("%w: %q", domain.ErrInvalidName, gameKey)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	gc := l.entryLocked(key)
	set, ok := gc.owned[p]
	if !ok {
		set = make(contentSet)
		gc.owned[p] = set
	}

	added := 0
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := set[id]; !dup {
			set[id] = struct{}{}
			added++
		}
	}
	if added == 0 && ok {
		return 0, nil
	}
	return added, l.persistLocked(ctx)
}

// RemoveOwned drops ids from the owned set of (game, platform) and returns
// how many were removed.
func (l *Ledger) RemoveOwned(ctx context.Context, gameKey string, p domain.Platform, ids []string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	gc, ok := l.games[domain.CanonicalKey(gameKey)]
	if !ok {
		return 0, nil
	}
	set := gc.owned[p]
	removed := 0
	for _, id := range ids {
		if _, ok := set[id]; ok {
			delete(set, id)
			removed++
		}
	}
	if removed == 0 {
		return 0, nil
	}
	return removed, l.persistLocked(ctx)
}

// OwnedFor returns the sorted content ids owned for (game, platform).
// The result is empty, never nil, when nothing is recorded.
func (l *Ledger) OwnedFor(gameKey string, p domain.Platform) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	gc, ok := l.games[domain.CanonicalKey(gameKey)]
	if !ok {
		return []string{}
	}
	return gc.owned[p].sorted()
}

// OwnedCount returns the size of the owned set of (game, platform).
func (l *Ledger) OwnedCount(gameKey string, p domain.Platform) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	gc, ok := l.games[domain.CanonicalKey(gameKey)]
	if !ok {
		return 0
	}
	return len(gc.owned[p])
}

// Owned returns every platform's owned content for a game.
func (l *Ledger) Owned(gameKey string) map[domain.Platform][]string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[domain.Platform][]string)
	gc, ok := l.games[domain.CanonicalKey(gameKey)]
	if !ok {
		return out
	}
	for p, set := range gc.owned {
		out[p] = set.sorted()
	}
	return out
}

// SetupSharedInstall records path as the shared install location of the
// game on each of platforms.
func (l *Ledger) SetupSharedInstall(ctx context.Context, gameKey string, platforms []domain.Platform, path string) error {
	key := domain.CanonicalKey(gameKey)
	if key == "" {
		return fmt.Errorf("%w: %q", domain.ErrInvalidName, gameKey)
	}
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("shared install path is empty")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	gc := l.entryLocked(key)
	for _, p := range platforms {
		gc.shared[p] = path
	}

	l.logger.Info("shared installation set up",
		logger.String("game", key),
		logger.String("path", path),
		logger.Int("platforms", len(platforms)))
	return l.persistLocked(ctx)
}

// SharedInstall returns the shared install paths of a game per platform.
func (l *Ledger) SharedInstall(gameKey string) map[domain.Platform]string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[domain.Platform]string)
	if gc, ok := l.games[domain.CanonicalKey(gameKey)]; ok {
		for p, path := range gc.shared {
			out[p] = path
		}
	}
	return out
}

// Forget drops everything recorded for a game.
func (l *Ledger) Forget(ctx context.Context, gameKey string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := domain.CanonicalKey(gameKey)
	if _, ok := l.games[key]; !ok {
		return nil
	}
	delete(l.games, key)
	return l.persistLocked(ctx)
}

func (l *Ledger) entryLocked(key string) *gameContent {
	gc, ok := l.games[key]
	if !ok {
		gc = &gameContent{
			owned:  make(map[domain.Platform]contentSet),
			shared: make(map[domain.Platform]string),
		}
		l.games[key] = gc
	}
	return gc
}

func (s contentSet) sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// record is the persisted shape of one game's entry.
type record struct {
	Owned         map[domain.Platform][]string `json:"owned"`
	SharedInstall map[domain.Platform]string   `json:"sharedInstall,omitempty"`
}

// Snapshot serializes the ledger as {gameKey: {owned, sharedInstall}} with
// sorted content ids.
func (l *Ledger) Snapshot() ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.snapshotLocked()
}

func (l *Ledger) snapshotLocked() ([]byte, error) {
	doc := make(map[string]record, len(l.games))
	for key, gc := range l.games {
		rec := record{
			Owned:         make(map[domain.Platform][]string, len(gc.owned)),
			SharedInstall: gc.shared,
		}
		for p, set := range gc.owned {
			rec.Owned[p] = set.sorted()
		}
		doc[key] = rec
	}
	return json.Marshal(doc)
}

// Restore replaces the in-memory ledger with the persisted record and
// returns how many games were loaded.
func (l *Ledger) Restore(ctx context.Context) (int, error) {
	n, err := l.restore(ctx)
	l.mu.Lock()
	l.unread = err
	l.mu.Unlock()
	return n, err
}

func (l *Ledger) restore(ctx context.Context) (int, error) {
	data, err := l.backend.Load(ctx, state.RecordLedger)
	if err != nil {
		return 0, fmt.Errorf("failed to load content mappings: %w", err)
	}
	if data == nil {
		return 0, nil
	}

	var doc map[string]record
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("failed to decode content mappings: %w", err)
	}

	games := make(map[string]*gameContent, len(doc))
	for key, rec := range doc {
		gc := &gameContent{
			owned:  make(map[domain.Platform]contentSet, len(rec.Owned)),
			shared: make(map[domain.Platform]string, len(rec.SharedInstall)),
		}
		for p, ids := range rec.Owned {
			set := make(contentSet, len(ids))
			for _, id := range ids {
				set[id] = struct{}{}
			}
			gc.owned[p] = set
		}
		for p, path := range rec.SharedInstall {
			gc.shared[p] = path
		}
		games[key] = gc
	}

	l.mu.Lock()
	l.games = games
	l.mu.Unlock()
	return len(games), nil
}

// persistLocked writes the full ledger through to the backend.
// The caller must hold l.mu for writing.
func (l *Ledger) persistLocked(ctx context.Context) error {
	if l.unread != nil {
		err := fmt.Errorf("%w: %w", state.ErrUnread, l.unread)
		l.logger.Error("not persisting content mappings", logger.Error(err))
		return &domain.PersistenceError{Record: string(state.RecordLedger), Err: err}
	}
	data, err := l.snapshotLocked()
	if err == nil {
		err = l.backend.Save(ctx, state.RecordLedger, data)
	}
	if err != nil {
		l.logger.Error("failed to persist content mappings", logger.Error(err))
		return &domain.PersistenceError{Record: string(state.RecordLedger), Err: err}
	}
	return nil
}
