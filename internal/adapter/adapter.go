// Package adapter defines the capability every platform integration exposes
// to the reconciliation core, and the startup-built lookup table used to
// dispatch to it.
package adapter

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/gamedeck/internal/domain"
)

// Adapter is one platform integration. Implementations own their auth model,
// local file formats and API calls; the core only sees these results.
type Adapter interface {
	Platform() domain.Platform

	// Authenticate may block on an interactive flow and must honor ctx.
	Authenticate(ctx context.Context) (Credentials, error)
	RefreshToken(ctx context.Context, refreshToken string) (Credentials, error)

	ListInstalled(ctx context.Context) ([]InstalledItem, error)
	ListOwned(ctx context.Context) ([]OwnedItem, error)

	Launch(ctx context.Context, nativeAppID string) error
}

// Credentials is what a successful authenticate or refresh yields.
// Expiry may be given absolutely (ExpiresAt) or relatively (ExpiresIn);
// both zero means the adapter does not know.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	UserID       string
	ExpiresAt    time.Time
	ExpiresIn    time.Duration
}

// InstalledItem is one entry of a platform's local install scan.
type InstalledItem struct {
	NativeAppID string
	DisplayName string
	// AppName is the platform's internal name, used when DisplayName is empty.
	AppName     string
	InstallPath string
	// ExePathHint is absolute, or relative to InstallPath.
	ExePathHint string
	SizeBytes   int64
	Version     string
}

// Name returns the display name, falling back to the app name.
func (i InstalledItem) Name() string {
	if i.DisplayName != "" {
		return i.DisplayName
	}
	return i.AppName
}

// OwnedItem is one entry of a platform's library listing.
type OwnedItem struct {
	NativeAppID string
	DisplayName string
	ContentIDs  []string
}
