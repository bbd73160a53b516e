// Package registry holds the canonical, cross-platform game identities.
//
// Sightings from every adapter are folded onto one GameIdentity per
// canonical key. Bindings only grow through ingestion; the installation of a
// platform is replaced wholesale by each new sighting on that platform.
package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/MrSnakeDoc/gamedeck/internal/domain"
	"github.com/MrSnakeDoc/gamedeck/internal/logger"
	"github.com/MrSnakeDoc/gamedeck/internal/state"
)

// Sighting is one game reported by an adapter.
// Installation is nil for owned-but-not-installed games.
type Sighting struct {
	NativeAppID  string
	DisplayName  string
	Installation *domain.Installation
}

// BatchResult summarizes an IngestBatch call.
type BatchResult struct {
	Keys    []string // canonical keys, in ingestion order
	Skipped int      // sightings rejected for an empty name
}

// Registry is the in-memory game index, written through to a state backend.
type Registry struct {
	mu    sync.RWMutex
	games map[string]*domain.GameIdentity

	// unread is set while the stored record could not be restored.
	unread error

	backend state.Backend
	logger  logger.Logger
}

// New creates an empty registry. Call Restore to load persisted games.
func New(backend state.Backend, log logger.Logger) *Registry {
	return &Registry{
		games:   make(map[string]*domain.GameIdentity),
		backend: backend,
		logger:  log,
	}
}

// Ingest records one sighting of displayName on platform p and returns the
// canonical key it was merged into.
func (r *Registry) Ingest(ctx context.Context, p domain.Platform, nativeAppID, displayName string, inst *domain.Installation) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key, err := r.ingestLocked(p, Sighting{NativeAppID: nativeAppID, DisplayName: displayName, Installation: inst})
	if err != nil {
		return "", err
	}
	return key, r.persistLocked(ctx)
}

// IngestBatch applies the sightings of one adapter in list order under a
// single write lock and persists once at the end. Sightings without a
// usable name are skipped and counted.
func (r *Registry) IngestBatch(ctx context.Context, p domain.Platform, sightings []Sighting) (BatchResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := BatchResult{Keys: make([]string, 0, len(sightings))}
	for _, s := range sightings {
		key, err := r.ingestLocked(p, s)
		if err != nil {
			res.Skipped++
			r.logger.Warn("skipping sighting",
				logger.String("platform", p.String()),
				logger.String("native_app_id", s.NativeAppID),
				logger.Error(err))
			continue
		}
		res.Keys = append(res.Keys, key)
	}
	if len(res.Keys) == 0 {
		return res, nil
	}
	return res, r.persistLocked(ctx)
}

func (r *Registry) ingestLocked(p domain.Platform, s Sighting) (string, error) {
	key := domain.CanonicalKey(s.DisplayName)
	if key == "" {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidName, s.DisplayName)
	}

	g, ok := r.games[key]
	if !ok {
		g = &domain.GameIdentity{
			Key:           key,
			Name:          strings.TrimSpace(s.DisplayName),
			Installations: make(map[domain.Platform]domain.Installation),
		}
		r.games[key] = g
	}

	bound := false
	for i := range g.Bindings {
		if g.Bindings[i].Platform == p {
			g.Bindings[i].NativeID = s.NativeAppID
			bound = true
			break
		}
	}
	if !bound {
		g.Bindings = append(g.Bindings, domain.PlatformBinding{Platform: p, NativeID: s.NativeAppID})
	}

	if s.Installation != nil {
		inst := *s.Installation
		inst.Platform = p
		g.Installations[p] = inst
	}

	if g.ActivePlatform == "" {
		g.ActivePlatform = p
	}
	return key, nil
}

// SetActivePlatform makes p the default launch/install target of a game.
func (r *Registry) SetActivePlatform(ctx context.Context, gameKey string, p domain.Platform) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, err := r.lookupLocked(gameKey)
	if err != nil {
		return err
	}
	if !g.IsBound(p) {
		return fmt.Errorf("%w: %s on %s", domain.ErrUnboundPlatform, g.Key, p)
	}
	if g.ActivePlatform == p {
		return nil
	}
	g.ActivePlatform = p
	return r.persistLocked(ctx)
}

// ListByPlatform returns the sorted canonical keys, restricted to games
// bound to p when p is not empty.
func (r *Registry) ListByPlatform(p domain.Platform) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.games))
	for key, g := range r.games {
		if p == "" || g.IsBound(p) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// Get returns a copy of the game. gameKey may be any spelling that folds
// to the canonical key.
func (r *Registry) Get(gameKey string) (*domain.GameIdentity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, err := r.lookupLocked(gameKey)
	if err != nil {
		return nil, err
	}
	return g.Clone(), nil
}

// Platforms returns the bound platforms of a game in binding order.
func (r *Registry) Platforms(gameKey string) ([]domain.Platform, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, err := r.lookupLocked(gameKey)
	if err != nil {
		return nil, err
	}
	return g.Platforms(), nil
}

// ActiveInstallation returns the installation on the active platform.
// ok is false when the game has no active platform or is not installed there.
func (r *Registry) ActiveInstallation(gameKey string) (inst domain.Installation, ok bool, err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, err := r.lookupLocked(gameKey)
	if err != nil {
		return domain.Installation{}, false, err
	}
	if g.ActivePlatform == "" {
		return domain.Installation{}, false, nil
	}
	inst, ok = g.Installations[g.ActivePlatform]
	return inst, ok, nil
}

// Unbind drops the binding and installation of p from a game. If p was the
// active platform, the first remaining binding takes over.
func (r *Registry) Unbind(ctx context.Context, gameKey string, p domain.Platform) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, err := r.lookupLocked(gameKey)
	if err != nil {
		return err
	}
	idx := -1
	for i, b := range g.Bindings {
		if b.Platform == p {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s on %s", domain.ErrUnboundPlatform, g.Key, p)
	}

	g.Bindings = append(g.Bindings[:idx], g.Bindings[idx+1:]...)
	delete(g.Installations, p)
	if g.ActivePlatform == p {
		g.ActivePlatform = ""
		if len(g.Bindings) > 0 {
			g.ActivePlatform = g.Bindings[0].Platform
		}
	}

	r.logger.Info("platform unbound",
		logger.String("game", g.Key),
		logger.String("platform", p.String()))
	return r.persistLocked(ctx)
}

// Remove deletes a game from the registry.
func (r *Registry) Remove(ctx context.Context, gameKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g, err := r.lookupLocked(gameKey)
	if err != nil {
		return err
	}
	delete(r.games, g.Key)

	r.logger.Info("game removed", logger.String("game", g.Key))
	return r.persistLocked(ctx)
}

// Count returns the number of games.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.games)
}

func (r *Registry) lookupLocked(gameKey string) (*domain.GameIdentity, error) {
	g, ok := r.games[domain.CanonicalKey(gameKey)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownGame, gameKey)
	}
	return g, nil
}
