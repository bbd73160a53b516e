// Package tracker turns adapter scan results into registry sightings and
// ledger entries.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/MrSnakeDoc/gamedeck/internal/adapter"
	"github.com/MrSnakeDoc/gamedeck/internal/domain"
	"github.com/MrSnakeDoc/gamedeck/internal/logger"
	"github.com/MrSnakeDoc/gamedeck/internal/registry"
)

// DefaultVersion is recorded when a platform reports no version.
const DefaultVersion = "1.0"

// Games is the registry surface the tracker writes to.
type Games interface {
	IngestBatch(ctx context.Context, p domain.Platform, sightings []registry.Sighting) (registry.BatchResult, error)
}

// Content is the ledger surface the tracker writes to.
type Content interface {
	RegisterOwned(ctx context.Context, gameKey string, p domain.Platform, ids []string) (int, error)
}

// Result counts what one ingestion applied.
type Result struct {
	Games   int `json:"games"`
	Skipped int `json:"skipped"`
	Content int `json:"content"` // newly recorded content ids
	Empty   bool `json:"empty,omitempty"`
}

// Warnings describes an empty or partly skipped result. It is nil when
// every item was applied.
func (r Result) Warnings(kind string) []string {
	var out []string
	if r.Empty {
		out = append(out, kind+" scan returned no games")
	}
	if r.Skipped > 0 {
		out = append(out, fmt.Sprintf("%s scan skipped %d unnamed items", kind, r.Skipped))
	}
	return out
}

type Tracker struct {
	games   Games
	content Content
	logger  logger.Logger
}

func New(games Games, content Content, log logger.Logger) *Tracker {
	return &Tracker{games: games, content: content, logger: log}
}

// IngestInstalled applies a platform's install scan in list order.
// An empty list is a valid scan and changes nothing; previously known
// installations are kept until a sighting replaces them.
func (t *Tracker) IngestInstalled(ctx context.Context, p domain.Platform, items []adapter.InstalledItem) (Result, error) {
	if len(items) == 0 {
		t.logger.Warn("install scan returned no games", logger.String("platform", p.String()))
		return Result{Empty: true}, nil
	}

	sightings := make([]registry.Sighting, 0, len(items))
	for _, item := range items {
		inst := installationOf(p, item)
		sightings = append(sightings, registry.Sighting{
			NativeAppID:  item.NativeAppID,
			DisplayName:  item.Name(),
			Installation: &inst,
		})
	}

	res, err := t.games.IngestBatch(ctx, p, sightings)
	t.logger.Info("installed games ingested",
		logger.String("platform", p.String()),
		logger.Int("games", len(res.Keys)),
		logger.Int("skipped", res.Skipped))
	return Result{Games: len(res.Keys), Skipped: res.Skipped}, err
}

// IngestOwned binds every owned game to p without touching installations
// and records the owned content ids in the ledger.
func (t *Tracker) IngestOwned(ctx context.Context, p domain.Platform, items []adapter.OwnedItem) (Result, error) {
	if len(items) == 0 {
		t.logger.Warn("library scan returned no games", logger.String("platform", p.String()))
		return Result{Empty: true}, nil
	}

	sightings := make([]registry.Sighting, 0, len(items))
	for _, item := range items {
		sightings = append(sightings, registry.Sighting{
			NativeAppID: item.NativeAppID,
			DisplayName: item.DisplayName,
		})
	}
	batch, err := t.games.IngestBatch(ctx, p, sightings)
	res := Result{Games: len(batch.Keys), Skipped: batch.Skipped}
	errs := []error{err}

	for _, item := range items {
		if len(item.ContentIDs) == 0 {
			continue
		}
		key := domain.CanonicalKey(item.DisplayName)
		if key == "" {
			continue
		}
		n, err := t.content.RegisterOwned(ctx, key, p, item.ContentIDs)
		res.Content += n
		errs = append(errs, err)
	}

	t.logger.Info("owned games ingested",
		logger.String("platform", p.String()),
		logger.Int("games", res.Games),
		logger.Int("content", res.Content))
	return res, errors.Join(errs...)
}

// installationOf builds the Installation record of an install scan item.
func installationOf(p domain.Platform, item adapter.InstalledItem) domain.Installation {
	exe := item.InstallPath
	if hint := strings.TrimSpace(item.ExePathHint); hint != "" {
		exe = hint
		if !filepath.IsAbs(hint) && item.InstallPath != "" {
			exe = filepath.Join(item.InstallPath, hint)
		}
	}

	version := item.Version
	if version == "" {
		version = DefaultVersion
	}

	size := item.SizeBytes
	if size < 0 {
		size = 0
	}

	return domain.Installation{
		Platform:       p,
		InstallPath:    item.InstallPath,
		ExecutablePath: exe,
		AppID:          item.NativeAppID,
		Version:        version,
		SizeBytes:      size,
	}
}
