package tracker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/MrSnakeDoc/gamedeck/internal/adapter"
	"github.com/MrSnakeDoc/gamedeck/internal/domain"
	"github.com/MrSnakeDoc/gamedeck/internal/ledger"
	"github.com/MrSnakeDoc/gamedeck/internal/logger"
	"github.com/MrSnakeDoc/gamedeck/internal/registry"
	"github.com/MrSnakeDoc/gamedeck/internal/state"
)

func TestInstallationOf(t *testing.T) {
	root := filepath.FromSlash("/games/hades")
	tests := []struct {
		name    string
		item    adapter.InstalledItem
		exe     string
		version string
		size    int64
	}{
		{
			name:    "relative hint joined to install path",
			item:    adapter.InstalledItem{InstallPath: root, ExePathHint: "x64/Hades.exe", Version: "1.38", SizeBytes: 42},
			exe:     filepath.Join(root, "x64/Hades.exe"),
			version: "1.38",
			size:    42,
		},
		{
			name:    "absolute hint kept",
			item:    adapter.InstalledItem{InstallPath: root, ExePathHint: filepath.FromSlash("/opt/hades/run")},
			exe:     filepath.FromSlash("/opt/hades/run"),
			version: DefaultVersion,
		},
		{
			name:    "no hint falls back to install path",
			item:    adapter.InstalledItem{InstallPath: root, SizeBytes: -5},
			exe:     root,
			version: DefaultVersion,
			size:    0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := installationOf(domain.PlatformEpic, tt.item)
			if got.ExecutablePath != tt.exe {
				t.Errorf("ExecutablePath = %q, want %q", got.ExecutablePath, tt.exe)
			}
			if got.Version != tt.version {
				t.Errorf("Version = %q, want %q", got.Version, tt.version)
			}
			if got.SizeBytes != tt.size {
				t.Errorf("SizeBytes = %d, want %d", got.SizeBytes, tt.size)
			}
			if got.Platform != domain.PlatformEpic {
				t.Errorf("Platform = %q", got.Platform)
			}
		})
	}
}

func newTracker() (*Tracker, *registry.Registry, *ledger.Ledger) {
	backend := state.NewMemory()
	reg := registry.New(backend, logger.Nop())
	led := ledger.New(backend, logger.Nop())
	return New(reg, led, logger.Nop()), reg, led
}

func TestIngestInstalledNameFallback(t *testing.T) {
	ctx := context.Background()
	tr, reg, _ := newTracker()

	res, err := tr.IngestInstalled(ctx, domain.PlatformEpic, []adapter.InstalledItem{
		{NativeAppID: "Fortnite", AppName: "Fortnite", InstallPath: "/e/fn"},
		{NativeAppID: "9d2d", DisplayName: "Rocket League", AppName: "Sugar", InstallPath: "/e/rl"},
		{NativeAppID: "blank"},
	})
	if err != nil {
		t.Fatalf("IngestInstalled() error = %v", err)
	}
	if res.Games != 2 || res.Skipped != 1 {
		t.Errorf("Result = %+v, want 2 games 1 skipped", res)
	}
	if _, err := reg.Get("fortnite"); err != nil {
		t.Errorf("app name fallback not applied: %v", err)
	}
	if _, err := reg.Get("sugar"); !errors.Is(err, domain.ErrUnknownGame) {
		t.Error("display name should win over app name")
	}
}

func TestIngestInstalledEmptyKeepsLastKnown(t *testing.T) {
	ctx := context.Background()
	tr, reg, _ := newTracker()
	_, _ = tr.IngestInstalled(ctx, domain.PlatformSteam, []adapter.InstalledItem{
		{NativeAppID: "620", DisplayName: "Portal 2", InstallPath: "/s/portal2"},
	})

	res, err := tr.IngestInstalled(ctx, domain.PlatformSteam, nil)
	if err != nil {
		t.Fatalf("IngestInstalled(nil) error = %v", err)
	}
	if !res.Empty || len(res.Warnings("install")) != 1 {
		t.Errorf("IngestInstalled(nil) = %+v, want an empty result with one warning", res)
	}
	g, err := reg.Get("portal 2")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if g.Installations[domain.PlatformSteam].InstallPath != "/s/portal2" {
		t.Error("empty scan blanked the installation")
	}
}

func TestResultWarnings(t *testing.T) {
	tests := []struct {
		name string
		res  Result
		want int
	}{
		{"clean", Result{Games: 2}, 0},
		{"empty", Result{Empty: true}, 1},
		{"skipped", Result{Games: 1, Skipped: 2}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.res.Warnings("install"); len(got) != tt.want {
				t.Errorf("Warnings() = %v, want %d entries", got, tt.want)
			}
		})
	}
}

func TestIngestOwned(t *testing.T) {
	ctx := context.Background()
	tr, reg, led := newTracker()
	_, _ = tr.IngestInstalled(ctx, domain.PlatformGOG, []adapter.InstalledItem{
		{NativeAppID: "1", DisplayName: "The Witcher 3", InstallPath: "/g/w3"},
	})

	res, err := tr.IngestOwned(ctx, domain.PlatformGOG, []adapter.OwnedItem{
		{NativeAppID: "1", DisplayName: "The Witcher 3", ContentIDs: []string{"hos", "baw"}},
		{NativeAppID: "2", DisplayName: "Cyberpunk 2077"},
	})
	if err != nil {
		t.Fatalf("IngestOwned() error = %v", err)
	}
	if res.Games != 2 || res.Content != 2 {
		t.Errorf("Result = %+v, want 2 games 2 content", res)
	}

	g, _ := reg.Get("the witcher 3")
	if g.Installations[domain.PlatformGOG].InstallPath != "/g/w3" {
		t.Error("owned scan dropped the installation")
	}
	cp, err := reg.Get("cyberpunk 2077")
	if err != nil {
		t.Fatalf("owned-only game not registered: %v", err)
	}
	if len(cp.Installations) != 0 {
		t.Errorf("owned-only game has installations: %v", cp.Installations)
	}
	if n := led.OwnedCount("the witcher 3", domain.PlatformGOG); n != 2 {
		t.Errorf("OwnedCount() = %d, want 2", n)
	}
}
