package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/gamedeck/internal/domain"
	"github.com/MrSnakeDoc/gamedeck/internal/logger"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, log logger.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("failed to write response", logger.Error(err))
	}
}

// writeError maps domain errors to HTTP statuses.
func writeError(w http.ResponseWriter, log logger.Logger, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", logger.Int("status", status), logger.Error(err))
	}
	writeJSON(w, log, status, errorResponse{Error: err.Error()})
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnknownGame):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnboundPlatform),
		errors.Is(err, domain.ErrAuthInProgress),
		errors.Is(err, domain.ErrNoRefreshToken),
		errors.Is(err, domain.ErrSessionInvalid):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAuth),
		errors.Is(err, domain.ErrAuthTimeout),
		errors.Is(err, domain.ErrRefreshRejected),
		errors.Is(err, domain.ErrLaunch):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrAdapterUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// platformParam parses the {platform} URL parameter.
func platformParam(r *http.Request) (domain.Platform, error) {
	return domain.ParsePlatform(chi.URLParam(r, "platform"))
}

// mutationResponse is returned by endpoints that change state. Warning is
// set when the change was applied in memory but could not be persisted.
type mutationResponse struct {
	OK      bool   `json:"ok"`
	Warning string `json:"warning,omitempty"`
}

// splitPersistence separates a persistence failure, reported as a warning,
// from an error that rejected the mutation.
func splitPersistence(err error) (string, error) {
	if err == nil {
		return "", nil
	}
	if errors.Is(err, domain.ErrPersistence) {
		return err.Error(), nil
	}
	return "", err
}

func writeMutation(w http.ResponseWriter, log logger.Logger, err error) {
	warning, err := splitPersistence(err)
	if err != nil {
		writeError(w, log, err)
		return
	}
	if warning != "" {
		log.Warn("state change not persisted", logger.String("warning", warning))
	}
	writeJSON(w, log, http.StatusOK, mutationResponse{OK: true, Warning: warning})
}

func badRequest(w http.ResponseWriter, log logger.Logger, msg string) {
	writeJSON(w, log, http.StatusBadRequest, errorResponse{Error: msg})
}
