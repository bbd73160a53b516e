package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/gamedeck/internal/domain"
	"github.com/MrSnakeDoc/gamedeck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/gamedeck/internal/logger"
	"github.com/MrSnakeDoc/gamedeck/internal/orchestrator"
)

type sessionsResponse struct {
	Sessions []orchestrator.AuthResult `json:"sessions"`
}

// Sessions lists the session state of every known platform.
func Sessions(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, d.Logger, http.StatusOK, sessionsResponse{Sessions: d.Orchestrator.Sessions()})
	}
}

// Login starts a platform's interactive authentication. The flow may wait
// minutes for the user, so it runs in the background; poll Sessions for
// the outcome.
func Login(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := platformParam(r)
		if err != nil {
			badRequest(w, d.Logger, err.Error())
			return
		}
		if err := d.Orchestrator.AuthenticateAsync(d.Background, p); err != nil {
			writeError(w, d.Logger, err)
			return
		}
		d.Logger.Info("authentication started via endpoint",
			logger.String("platform", p.String()),
			logger.String("remote_ip", r.RemoteAddr))
		writeJSON(w, d.Logger, http.StatusAccepted, orchestrator.AuthResult{Platform: p, State: domain.StateAuthenticating})
	}
}

// Refresh renews a platform's access token with its refresh token.
func Refresh(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := platformParam(r)
		if err != nil {
			badRequest(w, d.Logger, err.Error())
			return
		}
		writeMutation(w, d.Logger, d.Orchestrator.Refresh(r.Context(), p))
	}
}

// Logout clears a platform's session.
func Logout(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := platformParam(r)
		if err != nil {
			badRequest(w, d.Logger, err.Error())
			return
		}
		writeMutation(w, d.Logger, d.Orchestrator.Logout(r.Context(), p))
	}
}
