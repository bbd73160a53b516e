package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/gamedeck/internal/domain"
	"github.com/MrSnakeDoc/gamedeck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/gamedeck/internal/optimizer"
)

type gameSummary struct {
	Key            string            `json:"key"`
	Name           string            `json:"name"`
	Platforms      []domain.Platform `json:"platforms"`
	ActivePlatform domain.Platform   `json:"activePlatform,omitempty"`
	Installed      []domain.Platform `json:"installed"`
}

type gameListResponse struct {
	Count int           `json:"count"`
	Games []gameSummary `json:"games"`
}

type contentResponse struct {
	GameKey       string                       `json:"gameKey"`
	Owned         map[domain.Platform][]string `json:"owned"`
	SharedInstall map[domain.Platform]string   `json:"sharedInstall,omitempty"`
}

type sizeInfo struct {
	Bytes int64  `json:"bytes"`
	Human string `json:"human"`
}

type recommendationResponse struct {
	optimizer.Recommendation
	Sizes map[domain.Platform]sizeInfo `json:"sizes"`
	Cloud map[domain.Platform]bool     `json:"cloud"`
}

type platformRequest struct {
	Platform string `json:"platform"`
}

type sharedInstallRequest struct {
	Platforms []string `json:"platforms"`
	Path      string   `json:"path"`
}

type launchResponse struct {
	GameKey  string          `json:"gameKey"`
	Platform domain.Platform `json:"platform"`
}

func summarize(g *domain.GameIdentity) gameSummary {
	s := gameSummary{
		Key:            g.Key,
		Name:           g.Name,
		Platforms:      g.Platforms(),
		ActivePlatform: g.ActivePlatform,
		Installed:      make([]domain.Platform, 0, len(g.Installations)),
	}
	for p := range g.Installations {
		s.Installed = append(s.Installed, p)
	}
	sort.Slice(s.Installed, func(i, j int) bool { return s.Installed[i] < s.Installed[j] })
	return s
}

// ListGames lists the registry, optionally filtered by ?platform=.
func ListGames(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var filter domain.Platform
		if raw := r.URL.Query().Get("platform"); raw != "" {
			p, err := domain.ParsePlatform(raw)
			if err != nil {
				badRequest(w, d.Logger, err.Error())
				return
			}
			filter = p
		}

		keys := d.Games.ListByPlatform(filter)
		resp := gameListResponse{Games: make([]gameSummary, 0, len(keys))}
		for _, key := range keys {
			g, err := d.Games.Get(key)
			if err != nil {
				// Removed between the listing and the lookup.
				continue
			}
			resp.Games = append(resp.Games, summarize(g))
		}
		resp.Count = len(resp.Games)
		writeJSON(w, d.Logger, http.StatusOK, resp)
	}
}

// GetGame returns one game with its bindings and installations.
func GetGame(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, err := d.Games.Get(chi.URLParam(r, "key"))
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, d.Logger, http.StatusOK, g)
	}
}

// DeleteGame removes a game from the registry and the ledger.
func DeleteGame(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeMutation(w, d.Logger, d.Orchestrator.RemoveGame(r.Context(), chi.URLParam(r, "key")))
	}
}

// SetActivePlatform sets the platform a game launches on. An empty
// platform applies the optimizer's recommendation.
func SetActivePlatform(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req platformRequest
		if err := decodeBody(r, &req); err != nil {
			badRequest(w, d.Logger, err.Error())
			return
		}
		key := chi.URLParam(r, "key")

		if req.Platform == "" {
			p, err := d.Optimizer.SelectActive(r.Context(), key)
			warning, err := splitPersistence(err)
			if err != nil {
				writeError(w, d.Logger, err)
				return
			}
			writeJSON(w, d.Logger, http.StatusOK, struct {
				Platform domain.Platform `json:"platform"`
				Warning  string          `json:"warning,omitempty"`
			}{p, warning})
			return
		}

		p, err := domain.ParsePlatform(req.Platform)
		if err != nil {
			badRequest(w, d.Logger, err.Error())
			return
		}
		writeMutation(w, d.Logger, d.Games.SetActivePlatform(r.Context(), key, p))
	}
}

// UnbindPlatform drops a game's binding and installation on a platform.
func UnbindPlatform(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := platformParam(r)
		if err != nil {
			badRequest(w, d.Logger, err.Error())
			return
		}
		writeMutation(w, d.Logger, d.Games.Unbind(r.Context(), chi.URLParam(r, "key"), p))
	}
}

// Recommendation explains which platform a game should be played on.
func Recommendation(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")

		rec, err := d.Optimizer.Recommend(key)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		sizes, err := d.Optimizer.InstallationSizes(key)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		cloud, err := d.Optimizer.CloudAvailability(key)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		resp := recommendationResponse{
			Recommendation: rec,
			Sizes:          make(map[domain.Platform]sizeInfo, len(sizes)),
			Cloud:          cloud,
		}
		for p, n := range sizes {
			resp.Sizes[p] = sizeInfo{Bytes: n, Human: humanize.IBytes(uint64(n))}
		}
		writeJSON(w, d.Logger, http.StatusOK, resp)
	}
}

// Content returns the owned content of a game per platform.
func Content(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		g, err := d.Games.Get(chi.URLParam(r, "key"))
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, d.Logger, http.StatusOK, contentResponse{
			GameKey:       g.Key,
			Owned:         d.Content.Owned(g.Key),
			SharedInstall: d.Content.SharedInstall(g.Key),
		})
	}
}

// SharedInstall records one install location shared by several platforms.
func SharedInstall(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sharedInstallRequest
		if err := decodeBody(r, &req); err != nil {
			badRequest(w, d.Logger, err.Error())
			return
		}
		g, err := d.Games.Get(chi.URLParam(r, "key"))
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		platforms := make([]domain.Platform, 0, len(req.Platforms))
		for _, raw := range req.Platforms {
			p, err := domain.ParsePlatform(raw)
			if err != nil {
				badRequest(w, d.Logger, err.Error())
				return
			}
			platforms = append(platforms, p)
		}
		if len(platforms) == 0 {
			platforms = g.Platforms()
		}
		if req.Path == "" {
			badRequest(w, d.Logger, "path is required")
			return
		}
		writeMutation(w, d.Logger, d.Content.SetupSharedInstall(r.Context(), g.Key, platforms, req.Path))
	}
}

// Launch starts a game on the requested platform, or on its active one.
func Launch(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req platformRequest
		if err := decodeBody(r, &req); err != nil {
			badRequest(w, d.Logger, err.Error())
			return
		}
		var p domain.Platform
		if req.Platform != "" {
			parsed, err := domain.ParsePlatform(req.Platform)
			if err != nil {
				badRequest(w, d.Logger, err.Error())
				return
			}
			p = parsed
		}

		key := chi.URLParam(r, "key")
		used, err := d.Orchestrator.Launch(r.Context(), key, p)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}
		writeJSON(w, d.Logger, http.StatusOK, launchResponse{GameKey: domain.CanonicalKey(key), Platform: used})
	}
}

// decodeBody decodes an optional JSON body. An empty body leaves v as is.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
