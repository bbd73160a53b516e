// Package optimizer makes placement decisions from the merged registry and
// ledger state. It holds no state of its own.
package optimizer

import (
	"context"
	"fmt"

	"github.com/MrSnakeDoc/gamedeck/internal/domain"
	"github.com/MrSnakeDoc/gamedeck/internal/logger"
)

// Games is the registry surface the optimizer reads and updates.
type Games interface {
	Get(gameKey string) (*domain.GameIdentity, error)
	SetActivePlatform(ctx context.Context, gameKey string, p domain.Platform) error
}

// Content is the ledger surface the optimizer reads.
type Content interface {
	OwnedCount(gameKey string, p domain.Platform) int
}

// cloudPlatforms offer streaming of bound games.
var cloudPlatforms = map[domain.Platform]bool{
	domain.PlatformXbox:        true,
	domain.PlatformPlayStation: true,
}

// Recommendation explains a RecommendPlatform decision.
type Recommendation struct {
	GameKey     string                  `json:"gameKey"`
	Platform    domain.Platform         `json:"platform"`
	OwnedCounts map[domain.Platform]int `json:"ownedCounts"`
	TieBreak    bool                    `json:"tieBreak"`
}

type Optimizer struct {
	games   Games
	content Content
	logger  logger.Logger
}

func New(games Games, content Content, log logger.Logger) *Optimizer {
	return &Optimizer{games: games, content: content, logger: log}
}

// RecommendPlatform returns the bound platform with the strictly highest
// owned-content count. With no positive count or a tie at the maximum it
// returns the first bound platform.
func (o *Optimizer) RecommendPlatform(gameKey string) (domain.Platform, error) {
	rec, err := o.Recommend(gameKey)
	if err != nil {
		return "", err
	}
	return rec.Platform, nil
}

// Recommend is RecommendPlatform with the counts it was decided from.
func (o *Optimizer) Recommend(gameKey string) (Recommendation, error) {
	g, err := o.games.Get(gameKey)
	if err != nil {
		return Recommendation{}, err
	}
	if len(g.Bindings) == 0 {
		return Recommendation{}, fmt.Errorf("%w: %s has no bindings", domain.ErrUnknownGame, g.Key)
	}

	rec := Recommendation{
		GameKey:     g.Key,
		OwnedCounts: make(map[domain.Platform]int, len(g.Bindings)),
	}
	best, bestCount, winners := g.Bindings[0].Platform, 0, 0
	for _, b := range g.Bindings {
		n := o.content.OwnedCount(g.Key, b.Platform)
		rec.OwnedCounts[b.Platform] = n
		switch {
		case n > bestCount:
			best, bestCount, winners = b.Platform, n, 1
		case n == bestCount && n > 0:
			winners++
		}
	}
	if bestCount == 0 || winners > 1 {
		best = g.Bindings[0].Platform
		rec.TieBreak = true
	}
	rec.Platform = best
	return rec, nil
}

// SelectActive applies the recommendation as the game's active platform.
func (o *Optimizer) SelectActive(ctx context.Context, gameKey string) (domain.Platform, error) {
	p, err := o.RecommendPlatform(gameKey)
	if err != nil {
		return "", err
	}
	if err := o.games.SetActivePlatform(ctx, gameKey, p); err != nil {
		return p, err
	}
	o.logger.Info("active platform selected",
		logger.String("game", domain.CanonicalKey(gameKey)),
		logger.String("platform", p.String()))
	return p, nil
}

// InstallationSizes returns the installed size in bytes per platform.
func (o *Optimizer) InstallationSizes(gameKey string) (map[domain.Platform]int64, error) {
	g, err := o.games.Get(gameKey)
	if err != nil {
		return nil, err
	}
	out := make(map[domain.Platform]int64, len(g.Installations))
	for p, inst := range g.Installations {
		out[p] = inst.SizeBytes
	}
	return out, nil
}

// CloudAvailability reports, for each bound streaming platform, whether the
// game can be played without a local install.
func (o *Optimizer) CloudAvailability(gameKey string) (map[domain.Platform]bool, error) {
	g, err := o.games.Get(gameKey)
	if err != nil {
		return nil, err
	}
	out := make(map[domain.Platform]bool)
	for _, b := range g.Bindings {
		if cloudPlatforms[b.Platform] {
			out[b.Platform] = true
		}
	}
	return out, nil
}
