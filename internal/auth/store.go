// Package auth owns the per-platform authentication sessions: it runs the
// adapters' interactive and refresh flows, tracks each session's lifecycle
// and writes the whole set through to the state backend after every change.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/MrSnakeDoc/gamedeck/internal/adapter"
	"github.com/MrSnakeDoc/gamedeck/internal/domain"
	"github.com/MrSnakeDoc/gamedeck/internal/logger"
	"github.com/MrSnakeDoc/gamedeck/internal/state"
)

const (
	// DefaultAuthTimeout bounds an interactive (browser) authentication.
	DefaultAuthTimeout = 300 * time.Second
	// DefaultRefreshTimeout bounds a non-interactive token refresh.
	DefaultRefreshTimeout = 30 * time.Second
)

// Options tunes the store. Zero values fall back to the defaults above.
type Options struct {
	AuthTimeout    time.Duration
	RefreshTimeout time.Duration
	Now            func() time.Time // for testing, defaults to time.Now
}

type entry struct {
	session        *domain.AuthSession
	authenticating bool
	loggedOut      bool
}

// Store is the only owner of the sessions and of the set of authenticated
// platforms; other components go through its methods.
type Store struct {
	mu       sync.RWMutex
	sessions map[domain.Platform]*entry

	// unread is set while the stored record could not be restored.
	unread error

	adapters *adapter.Set
	backend  state.Backend
	logger   logger.Logger
	opts     Options
}

// NewStore creates an empty store. Call Restore to load persisted sessions.
func NewStore(adapters *adapter.Set, backend state.Backend, log logger.Logger, opts Options) *Store {
	if opts.AuthTimeout <= 0 {
		opts.AuthTimeout = DefaultAuthTimeout
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = DefaultRefreshTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		sessions: make(map[domain.Platform]*entry),
		adapters: adapters,
		backend:  backend,
		logger:   log,
		opts:     opts,
	}
}

// Register creates an empty session for p. It is a no-op when one exists.
func (s *Store) Register(ctx context.Context, p domain.Platform) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[p]; ok {
		return nil
	}
	s.sessions[p] = newEntry(p)
	return s.persistLocked(ctx)
}

// Authenticate runs the adapter's authentication flow for p unless the
// session is already valid. The flow is bounded by the auth timeout and
// no lock is held while it runs.
func (s *Store) Authenticate(ctx context.Context, p domain.Platform) error {
	a, err := s.adapters.Get(p)
	if err != nil {
		return err
	}

	s.mu.Lock()
	e, ok := s.sessions[p]
	if !ok {
		e = newEntry(p)
		s.sessions[p] = e
	}
	if e.session.IsValid(s.opts.Now()) {
		s.mu.Unlock()
		return nil
	}
	if e.authenticating {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrAuthInProgress, p)
	}
	e.authenticating = true
	s.mu.Unlock()

	s.logger.Info("authenticating platform", logger.String("platform", p.String()))

	authCtx, cancel := context.WithTimeout(ctx, s.opts.AuthTimeout)
	defer cancel()
	creds, flowErr := guarded(func() (adapter.Credentials, error) { return a.Authenticate(authCtx) })

	s.mu.Lock()
	defer s.mu.Unlock()
	e.authenticating = false

	if flowErr != nil {
		if errors.Is(flowErr, domain.ErrAuthTimeout) ||
			errors.Is(authCtx.Err(), context.DeadlineExceeded) {
			s.logger.Warn("authentication timed out",
				logger.String("platform", p.String()),
				logger.Duration("timeout", s.opts.AuthTimeout))
			return fmt.Errorf("%w: %s: %w", domain.ErrAuthTimeout, p, flowErr)
		}
		s.logger.Warn("authentication failed",
			logger.String("platform", p.String()),
			logger.Error(flowErr))
		return fmt.Errorf("%w: %s: %w", domain.ErrAuth, p, flowErr)
	}
	if creds.AccessToken == "" {
		return fmt.Errorf("%w: %s: adapter returned no access token", domain.ErrAuth, p)
	}

	now := s.opts.Now()
	exp, subject := resolveExpiry(creds, now)
	e.session.AccessToken = creds.AccessToken
	e.session.RefreshToken = creds.RefreshToken
	e.session.ExpiresAt = exp
	e.session.UserID = firstNonEmpty(creds.UserID, subject)
	e.loggedOut = false

	s.logger.Info("platform authenticated",
		logger.String("platform", p.String()),
		logger.Bool("has_refresh_token", creds.RefreshToken != ""),
		logger.Bool("has_expiry", exp != nil))

	return s.persistLocked(ctx)
}

// guarded runs an adapter flow, reporting a panic as an error.
func guarded(flow func() (adapter.Credentials, error)) (creds adapter.Credentials, err error) {
	defer adapter.Recover(&err)
	return flow()
}

// Refresh exchanges the held refresh token for a new access token.
// On any failure the session is left untouched.
func (s *Store) Refresh(ctx context.Context, p domain.Platform) error {
	s.mu.RLock()
	var refreshToken string
	if e, ok := s.sessions[p]; ok {
		refreshToken = e.session.RefreshToken
	}
	s.mu.RUnlock()

	if refreshToken == "" {
		return fmt.Errorf("%w: %s", domain.ErrNoRefreshToken, p)
	}

	a, err := s.adapters.Get(p)
	if err != nil {
		return err
	}

	refreshCtx, cancel := context.WithTimeout(ctx, s.opts.RefreshTimeout)
	defer cancel()
	creds, err := guarded(func() (adapter.Credentials, error) { return a.RefreshToken(refreshCtx, refreshToken) })
	if err != nil {
		s.logger.Warn("token refresh rejected",
			logger.String("platform", p.String()),
			logger.Error(err))
		return fmt.Errorf("%w: %s: %w", domain.ErrRefreshRejected, p, err)
	}
	if creds.AccessToken == "" {
		return fmt.Errorf("%w: %s: adapter returned no access token", domain.ErrRefreshRejected, p)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[p]
	if !ok || e.session.RefreshToken != refreshToken {
		// Logged out or re-authenticated while the refresh was in flight.
		return fmt.Errorf("%w: %s: session changed during refresh", domain.ErrRefreshRejected, p)
	}

	exp, subject := resolveExpiry(creds, s.opts.Now())
	e.session.AccessToken = creds.AccessToken
	if creds.RefreshToken != "" {
		e.session.RefreshToken = creds.RefreshToken
	}
	e.session.ExpiresAt = exp
	if id := firstNonEmpty(creds.UserID, subject); id != "" {
		e.session.UserID = id
	}

	s.logger.Info("token refreshed", logger.String("platform", p.String()))
	return s.persistLocked(ctx)
}

// Logout clears the session of p. Unknown platforms are ignored.
func (s *Store) Logout(ctx context.Context, p domain.Platform) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[p]
	if !ok {
		return nil
	}
	e.session.Clear()
	e.loggedOut = true

	s.logger.Info("platform logged out", logger.String("platform", p.String()))
	return s.persistLocked(ctx)
}

// IsValid reports whether p holds a usable session. It never does I/O.
func (s *Store) IsValid(p domain.Platform) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[p]
	return ok && e.session.IsValid(s.opts.Now())
}

// State returns the lifecycle position of p's session.
func (s *Store) State(p domain.Platform) domain.SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[p]
	switch {
	case !ok:
		return domain.StateUnregistered
	case e.authenticating:
		return domain.StateAuthenticating
	case e.session.IsValid(s.opts.Now()):
		return domain.StateAuthenticated
	case e.session.AccessToken != "":
		return domain.StateExpired
	case e.loggedOut:
		return domain.StateLoggedOut
	default:
		return domain.StateUnauthenticated
	}
}

// Session returns a copy of p's session.
func (s *Store) Session(p domain.Platform) (*domain.AuthSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[p]
	if !ok {
		return nil, false
	}
	return e.session.Clone(), true
}

// AccessToken returns p's access token if the session is valid.
func (s *Store) AccessToken(p domain.Platform) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[p]
	if !ok || !e.session.IsValid(s.opts.Now()) {
		return "", fmt.Errorf("%w: %s", domain.ErrSessionInvalid, p)
	}
	return e.session.AccessToken, nil
}

// Platforms returns every registered platform, sorted.
func (s *Store) Platforms() []domain.Platform {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filterLocked(func(*entry) bool { return true })
}

// AuthenticatedPlatforms returns the platforms holding a valid session, sorted.
func (s *Store) AuthenticatedPlatforms() []domain.Platform {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.opts.Now()
	return s.filterLocked(func(e *entry) bool { return e.session.IsValid(now) })
}

// ExpiringWithin returns the platforms that hold a refresh token and whose
// access token has expired or expires within window, sorted.
func (s *Store) ExpiringWithin(window time.Duration) []domain.Platform {
	s.mu.RLock()
	defer s.mu.RUnlock()

	deadline := s.opts.Now().Add(window)
	return s.filterLocked(func(e *entry) bool {
		sess := e.session
		return sess.RefreshToken != "" && sess.AccessToken != "" &&
			sess.ExpiresAt != nil && sess.ExpiresAt.Before(deadline)
	})
}

func (s *Store) filterLocked(keep func(*entry) bool) []domain.Platform {
	out := make([]domain.Platform, 0, len(s.sessions))
	for p, e := range s.sessions {
		if keep(e) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Snapshot serializes every session as {platform: session}.
func (s *Store) Snapshot() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() ([]byte, error) {
	doc := make(map[domain.Platform]*domain.AuthSession, len(s.sessions))
	for p, e := range s.sessions {
		doc[p] = e.session
	}
	return json.Marshal(doc)
}

// Restore replaces the in-memory sessions with the persisted record and
// returns how many were loaded.
func (s *Store) Restore(ctx context.Context) (int, error) {
	n, err := s.restore(ctx)
	s.mu.Lock()
	s.unread = err
	s.mu.Unlock()
	return n, err
}

func (s *Store) restore(ctx context.Context) (int, error) {
	data, err := s.backend.Load(ctx, state.RecordAuth)
	if err != nil {
		return 0, fmt.Errorf("failed to load auth sessions: %w", err)
	}
	if data == nil {
		return 0, nil
	}
	return s.load(data)
}

func (s *Store) load(data []byte) (int, error) {
	var doc map[domain.Platform]*domain.AuthSession
	if err := json.Unmarshal(data, &doc); err != nil {
		return 0, fmt.Errorf("failed to decode auth sessions: %w", err)
	}

	sessions := make(map[domain.Platform]*entry, len(doc))
	for p, sess := range doc {
		if sess == nil {
			sess = &domain.AuthSession{}
		}
		sess.Platform = p
		sessions[p] = &entry{session: sess}
	}

	s.mu.Lock()
	s.sessions = sessions
	s.mu.Unlock()
	return len(sessions), nil
}

// persistLocked writes the full store through to the backend.
// The caller must hold s.mu for writing.
func (s *Store) persistLocked(ctx context.Context) error {
	if s.unread != nil {
		err := fmt.Errorf("%w: %w", state.ErrUnread, s.unread)
		s.logger.Error("not persisting auth sessions", logger.Error(err))
		return &domain.PersistenceError{Record: string(state.RecordAuth), Err: err}
	}
	data, err := s.snapshotLocked()
	if err == nil {
		err = s.backend.Save(ctx, state.RecordAuth, data)
	}
	if err != nil {
		s.logger.Error("failed to persist auth sessions", logger.Error(err))
		return &domain.PersistenceError{Record: string(state.RecordAuth), Err: err}
	}
	return nil
}

func newEntry(p domain.Platform) *entry {
	return &entry{session: &domain.AuthSession{Platform: p}}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
