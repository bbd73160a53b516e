// Package orchestrator drives scan and authentication cycles across the
// registered adapters and feeds their results into the stores. A failing
// adapter is recorded and never aborts the work on the others.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/gamedeck/internal/adapter"
	"github.com/MrSnakeDoc/gamedeck/internal/auth"
	"github.com/MrSnakeDoc/gamedeck/internal/domain"
	"github.com/MrSnakeDoc/gamedeck/internal/ledger"
	"github.com/MrSnakeDoc/gamedeck/internal/logger"
	"github.com/MrSnakeDoc/gamedeck/internal/metrics"
	"github.com/MrSnakeDoc/gamedeck/internal/registry"
	"github.com/MrSnakeDoc/gamedeck/internal/tracker"
)

const (
	kindInstalled = "installed"
	kindOwned     = "owned"
)

// Options tunes the orchestrator. Zero values use the defaults.
type Options struct {
	MaxConcurrent int           // adapters scanned at once, default 4
	ScanTimeout   time.Duration // per adapter call, default 60s
	Retry         RetryPolicy
}

func (o Options) withDefaults() Options {
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = 4
	}
	if o.ScanTimeout <= 0 {
		o.ScanTimeout = 60 * time.Second
	}
	o.Retry = o.Retry.withDefaults()
	return o
}

// Deps are the components the orchestrator drives.
type Deps struct {
	Adapters *adapter.Set
	Auth     *auth.Store
	Games    *registry.Registry
	Content  *ledger.Ledger
	Tracker  *tracker.Tracker
	Metrics  metrics.Recorder
	Logger   logger.Logger
}

type Orchestrator struct {
	adapters *adapter.Set
	auth     *auth.Store
	games    *registry.Registry
	content  *ledger.Ledger
	tracker  *tracker.Tracker
	metrics  metrics.Recorder
	logger   logger.Logger
	opts     Options

	scanMu sync.Mutex // one cycle at a time
	authWG sync.WaitGroup

	mu   sync.RWMutex
	last *CycleReport
}

func New(deps Deps, opts Options) *Orchestrator {
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}
	return &Orchestrator{
		adapters: deps.Adapters,
		auth:     deps.Auth,
		games:    deps.Games,
		content:  deps.Content,
		tracker:  deps.Tracker,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		opts:     opts.withDefaults(),
	}
}

// ScanCycle scans every registered adapter concurrently. Install scans are
// applied in each adapter's list order; the owned-library scan only runs
// for platforms holding a valid session.
func (o *Orchestrator) ScanCycle(ctx context.Context) CycleReport {
	o.scanMu.Lock()
	defer o.scanMu.Unlock()

	report := CycleReport{ID: uuid.NewString(), StartedAt: time.Now().UTC()}
	log := o.logger.With(logger.String("cycle_id", report.ID))

	platforms := o.adapters.Platforms()
	if len(platforms) == 0 {
		log.Warn("scan cycle skipped, no adapters registered")
	} else {
		log.Info("scan cycle started", logger.Int("adapters", len(platforms)))
	}

	reports := make([]PlatformReport, len(platforms))
	var g errgroup.Group
	g.SetLimit(o.opts.MaxConcurrent)
	for i, p := range platforms {
		g.Go(func() error {
			reports[i] = o.scanPlatform(ctx, log, p)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(reports, func(i, j int) bool { return reports[i].Platform < reports[j].Platform })
	report.Platforms = reports
	report.Outcome = outcomeOf(reports)
	report.FinishedAt = time.Now().UTC()

	elapsed := report.FinishedAt.Sub(report.StartedAt)
	o.metrics.RecordCycle(string(report.Outcome), elapsed)
	o.metrics.SetGames(o.games.Count())
	o.metrics.SetAuthenticated(len(o.auth.AuthenticatedPlatforms()))

	fields := []logger.Field{
		logger.String("outcome", string(report.Outcome)),
		logger.Duration("elapsed", elapsed),
		logger.Int("games", o.games.Count()),
	}
	if failed := report.Failed(); len(failed) > 0 {
		fields = append(fields, logger.Strings("failed", platformStrings(failed)))
		log.Warn("scan cycle finished with failures", fields...)
	} else {
		log.Info("scan cycle finished", fields...)
	}

	o.mu.Lock()
	o.last = &report
	o.mu.Unlock()
	return report
}

func (o *Orchestrator) scanPlatform(ctx context.Context, log logger.Logger, p domain.Platform) (rep PlatformReport) {
	start := time.Now()
	rep.Platform = p
	defer func() { rep.Duration = time.Since(start) }()
	defer func() {
		if r := recover(); r != nil {
			rep.Error = fmt.Sprintf("%v: %v", adapter.ErrPanic, r)
			log.Error("platform scan panicked",
				logger.String("platform", p.String()),
				logger.String("panic", fmt.Sprint(r)))
		}
	}()

	a, err := o.adapters.Get(p)
	if err != nil {
		rep.Error = err.Error()
		return rep
	}

	installed, attempts, err := withRetry(ctx, o, p, kindInstalled, a.ListInstalled)
	rep.Attempts = attempts
	o.metrics.RecordScan(p.String(), kindInstalled, scanOutcome(err), time.Since(start))
	if err != nil {
		// Nothing is ingested, so the last known installations stay.
		rep.Error = fmt.Sprintf("list installed: %v", err)
		log.Error("install scan failed",
			logger.String("platform", p.String()),
			logger.Int("attempts", attempts),
			logger.Error(err))
		return rep
	}

	res, err := o.tracker.IngestInstalled(ctx, p, installed)
	rep.Installed = res
	rep.Warnings = append(rep.Warnings, res.Warnings("install")...)
	if err != nil {
		rep.Warnings = append(rep.Warnings, err.Error())
	}

	if !o.auth.IsValid(p) {
		rep.OwnedSkipped = true
		return rep
	}

	ownedStart := time.Now()
	owned, _, err := withRetry(ctx, o, p, kindOwned, a.ListOwned)
	o.metrics.RecordScan(p.String(), kindOwned, scanOutcome(err), time.Since(ownedStart))
	if err != nil {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("list owned: %v", err))
		log.Warn("library scan failed",
			logger.String("platform", p.String()),
			logger.Error(err))
		return rep
	}
	ownedRes, err := o.tracker.IngestOwned(ctx, p, owned)
	rep.Owned = &ownedRes
	rep.Warnings = append(rep.Warnings, ownedRes.Warnings("library")...)
	if err != nil {
		rep.Warnings = append(rep.Warnings, err.Error())
	}
	return rep
}

// LastReport returns the report of the most recent cycle.
func (o *Orchestrator) LastReport() (CycleReport, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if o.last == nil {
		return CycleReport{}, false
	}
	return *o.last, true
}

// Authenticate runs one platform's authentication and records the result.
func (o *Orchestrator) Authenticate(ctx context.Context, p domain.Platform) error {
	err := o.auth.Authenticate(ctx, p)
	o.metrics.RecordAuth(p.String(), authOutcome(err))
	o.metrics.SetAuthenticated(len(o.auth.AuthenticatedPlatforms()))
	return err
}

// AuthenticateAsync checks that p can start an authentication, then runs
// it in the background under ctx. The outcome shows up in Sessions.
func (o *Orchestrator) AuthenticateAsync(ctx context.Context, p domain.Platform) error {
	if _, err := o.adapters.Get(p); err != nil {
		return err
	}
	if o.auth.State(p) == domain.StateAuthenticating {
		return fmt.Errorf("%w: %s", domain.ErrAuthInProgress, p)
	}

	o.authWG.Add(1)
	go func() {
		defer o.authWG.Done()
		if err := o.Authenticate(ctx, p); err != nil {
			o.logger.Warn("background authentication failed",
				logger.String("platform", p.String()),
				logger.Error(err))
		}
	}()
	return nil
}

// Wait blocks until background authentications have returned.
func (o *Orchestrator) Wait() {
	o.authWG.Wait()
}

// AuthenticateAll authenticates every registered platform concurrently.
// A failure on one platform leaves the others usable.
func (o *Orchestrator) AuthenticateAll(ctx context.Context) []AuthResult {
	platforms := o.adapters.Platforms()
	results := make([]AuthResult, len(platforms))

	var g errgroup.Group
	g.SetLimit(o.opts.MaxConcurrent)
	for i, p := range platforms {
		g.Go(func() error {
			err := o.Authenticate(ctx, p)
			results[i] = o.authResult(p, err)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Refresh refreshes one platform's token and records the result.
func (o *Orchestrator) Refresh(ctx context.Context, p domain.Platform) error {
	err := o.auth.Refresh(ctx, p)
	result := "refreshed"
	if err != nil && !errors.Is(err, domain.ErrPersistence) {
		result = "refresh_failed"
	}
	o.metrics.RecordAuth(p.String(), result)
	return err
}

// RefreshExpiring refreshes every session that expires within window.
// Sessions without a refresh token are left to a fresh authenticate.
func (o *Orchestrator) RefreshExpiring(ctx context.Context, window time.Duration) []AuthResult {
	platforms := o.auth.ExpiringWithin(window)
	results := make([]AuthResult, 0, len(platforms))
	for _, p := range platforms {
		err := o.Refresh(ctx, p)
		if err != nil {
			o.logger.Warn("token refresh failed",
				logger.String("platform", p.String()),
				logger.Error(err))
		}
		results = append(results, o.authResult(p, err))
	}
	o.metrics.SetAuthenticated(len(o.auth.AuthenticatedPlatforms()))
	return results
}

// Logout clears a platform's session.
func (o *Orchestrator) Logout(ctx context.Context, p domain.Platform) error {
	err := o.auth.Logout(ctx, p)
	o.metrics.RecordAuth(p.String(), "logged_out")
	o.metrics.SetAuthenticated(len(o.auth.AuthenticatedPlatforms()))
	return err
}

// Sessions reports the state of every platform that has an adapter or a
// session.
func (o *Orchestrator) Sessions() []AuthResult {
	seen := make(map[domain.Platform]bool)
	var out []AuthResult
	for _, p := range append(o.adapters.Platforms(), o.auth.Platforms()...) {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, o.authResult(p, nil))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Platform < out[j].Platform })
	return out
}

// Launch starts a game on p, or on its active platform when p is empty.
// It returns the platform used.
func (o *Orchestrator) Launch(ctx context.Context, gameKey string, p domain.Platform) (domain.Platform, error) {
	g, err := o.games.Get(gameKey)
	if err != nil {
		return "", err
	}
	if p == "" {
		p = g.ActivePlatform
	}
	b, ok := g.Binding(p)
	if !ok {
		return p, fmt.Errorf("%w: %s on %q", domain.ErrUnboundPlatform, g.Key, p)
	}
	a, err := o.adapters.Get(p)
	if err != nil {
		return p, err
	}

	if err := launch(ctx, a, b.NativeID); err != nil {
		o.logger.Error("launch failed",
			logger.String("game", g.Key),
			logger.String("platform", p.String()),
			logger.Error(err))
		return p, fmt.Errorf("%w: %s on %s: %w", domain.ErrLaunch, g.Key, p, err)
	}
	o.logger.Info("game launched",
		logger.String("game", g.Key),
		logger.String("platform", p.String()))
	return p, nil
}

func launch(ctx context.Context, a adapter.Adapter, nativeID string) (err error) {
	defer adapter.Recover(&err)
	return a.Launch(ctx, nativeID)
}

// RemoveGame drops a game from the registry and its ledger entries.
func (o *Orchestrator) RemoveGame(ctx context.Context, gameKey string) error {
	err := o.games.Remove(ctx, gameKey)
	if err != nil && !errors.Is(err, domain.ErrPersistence) {
		return err
	}
	err = errors.Join(err, o.content.Forget(ctx, gameKey))
	o.metrics.SetGames(o.games.Count())
	return err
}

func (o *Orchestrator) authResult(p domain.Platform, err error) AuthResult {
	r := AuthResult{Platform: p, State: o.auth.State(p)}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}

func scanOutcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

func authOutcome(err error) string {
	switch {
	case err == nil, errors.Is(err, domain.ErrPersistence):
		return "authenticated"
	case errors.Is(err, domain.ErrAuthTimeout):
		return "timeout"
	case errors.Is(err, domain.ErrAuthInProgress):
		return "in_progress"
	default:
		return "failed"
	}
}

func platformStrings(ps []domain.Platform) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.String()
	}
	return out
}
