package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrAuth covers a denied interactive flow or a rejected token exchange.
	ErrAuth = errors.New("authentication failed")
	// ErrAuthTimeout is returned when an interactive flow outlives its deadline.
	ErrAuthTimeout = errors.New("authentication timed out")
	// ErrAuthInProgress guards against two concurrent flows on one platform.
	ErrAuthInProgress = errors.New("authentication already in progress")
	// ErrNoRefreshToken is returned by refresh when the session holds none.
	ErrNoRefreshToken = errors.New("no refresh token")
	// ErrRefreshRejected is returned when the adapter refuses a refresh.
	ErrRefreshRejected = errors.New("refresh rejected")
	// ErrSessionInvalid is returned when a valid session is required but absent.
	ErrSessionInvalid = errors.New("session is not valid")
	// ErrAdapterUnavailable means no adapter is registered for a platform.
	ErrAdapterUnavailable = errors.New("adapter unavailable")
	// ErrUnknownGame means the canonical key is not in the registry.
	ErrUnknownGame = errors.New("unknown game")
	// ErrUnboundPlatform means the game has no binding on the platform.
	ErrUnboundPlatform = errors.New("platform not bound to game")
	// ErrInvalidName is returned when a sighting has no usable display name.
	ErrInvalidName = errors.New("invalid display name")
	// ErrLaunch wraps adapter launch failures.
	ErrLaunch = errors.New("launch failed")
	// ErrPersistence matches every *PersistenceError.
	ErrPersistence = errors.New("persistence failed")
)

// PersistenceError reports a failed durable write. The in-memory mutation
// that preceded it has already been applied.
type PersistenceError struct {
	Record string
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Record, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }
