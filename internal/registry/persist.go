package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/MrSnakeDoc/gamedeck/internal/domain"
	"github.com/MrSnakeDoc/gamedeck/internal/logger"
	"github.com/MrSnakeDoc/gamedeck/internal/state"
)

// gameRecord is the persisted shape of one game. Bindings is the
// {platform: nativeAppId} map; BindingOrder keeps the sighting order the
// placement tie-break depends on.
type gameRecord struct {
	Name           string                                  `json:"name"`
	Bindings       map[domain.Platform]string              `json:"bindings"`
	BindingOrder   []domain.Platform                       `json:"bindingOrder"`
	Installations  map[domain.Platform]domain.Installation `json:"installations,omitempty"`
	ActivePlatform domain.Platform                         `json:"activePlatform,omitempty"`
}

// Snapshot serializes every game as {gameKey: record}.
func (r *Registry) Snapshot() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.snapshotLocked()
}

func (r *Registry) snapshotLocked() ([]byte, error) {
	doc := make(map[string]gameRecord, len(r.games))
	for key, g := range r.games {
		rec := gameRecord{
			Name:           g.Name,
			Bindings:       make(map[domain.Platform]string, len(g.Bindings)),
			BindingOrder:   g.Platforms(),
			Installations:  g.Installations,
			ActivePlatform: g.ActivePlatform,
		}
		for _, b := range g.Bindings {
			rec.Bindings[b.Platform] = b.NativeID
		}
		doc[key] = rec
	}
	return json.Marshal(doc)
}

// Restore replaces the in-memory games with the persisted record and
// returns how many were loaded.
func (r *Registry) Restore(ctx context.Context) (int, error) {
	n, err := r.restore(ctx)
	r.mu.Lock()
	r.unread = err
	r.mu.Unlock()
	return n, err
}

func (r *Registry) restore(ctx context.Context) (int, error) {
	data, err := r.backend.Load(ctx, state.RecordGames)
	if err != nil {
		return 0, fmt.Errorf("failed to load game mappings: %w", err)
	}
	if data == nil {
		return 0, nil
	}

	var doc map[string]gameRecord
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("failed to decode game mappings: %w", err)
	}

	games := make(map[string]*domain.GameIdentity, len(doc))
	for key, rec := range doc {
		games[key] = rec.identity(key)
	}

	r.mu.Lock()
	r.games = games
	r.mu.Unlock()
	return len(games), nil
}

func (rec gameRecord) identity(key string) *domain.GameIdentity {
	g := &domain.GameIdentity{
		Key:           key,
		Name:          rec.Name,
		Installations: make(map[domain.Platform]domain.Installation, len(rec.Installations)),
	}
	if g.Name == "" {
		g.Name = key
	}

	seen := make(map[domain.Platform]bool, len(rec.Bindings))
	for _, p := range rec.BindingOrder {
		id, ok := rec.Bindings[p]
		if !ok || seen[p] {
			continue
		}
		seen[p] = true
		g.Bindings = append(g.Bindings, domain.PlatformBinding{Platform: p, NativeID: id})
	}
	// Records written without an order: fall back to platform id order.
	var rest []domain.Platform
	for p := range rec.Bindings {
		if !seen[p] {
			rest = append(rest, p)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	for _, p := range rest {
		g.Bindings = append(g.Bindings, domain.PlatformBinding{Platform: p, NativeID: rec.Bindings[p]})
	}

	for p, inst := range rec.Installations {
		if g.IsBound(p) {
			inst.Platform = p
			g.Installations[p] = inst
		}
	}
	if g.IsBound(rec.ActivePlatform) {
		g.ActivePlatform = rec.ActivePlatform
	} else if len(g.Bindings) > 0 {
		g.ActivePlatform = g.Bindings[0].Platform
	}
	return g
}

// persistLocked writes the full registry through to the backend.
// The caller must hold r.mu for writing.
func (r *Registry) persistLocked(ctx context.Context) error {
	if r.unread != nil {
		err := fmt.Errorf("%w: %w", state.ErrUnread, r.unread)
		r.logger.Error("not persisting game mappings", logger.Error(err))
		return &domain.PersistenceError{Record: string(state.RecordGames), Err: err}
	}
	data, err := r.snapshotLocked()
	if err == nil {
		err = r.backend.Save(ctx, state.RecordGames, data)
	}
	if err != nil {
		r.logger.Error("failed to persist game mappings", logger.Error(err))
		return &domain.PersistenceError{Record: string(state.RecordGames), Err: err}
	}
	return nil
}
