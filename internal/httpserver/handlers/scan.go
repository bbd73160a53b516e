package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/gamedeck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/gamedeck/internal/logger"
)

type scanTriggerResponse struct {
	Triggered bool   `json:"triggered"`
	Message   string `json:"message"`
}

// Scan triggers a scan cycle. Requests made while one is already queued
// are coalesced into it.
func Scan(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case d.ScanTrigger <- struct{}{}:
			d.Logger.Info("manual scan triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, d.Logger, http.StatusAccepted, scanTriggerResponse{
				Triggered: true,
				Message:   "scan triggered",
			})
		default:
			d.Logger.Warn("scan already queued",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, d.Logger, http.StatusTooManyRequests, scanTriggerResponse{
				Message: "scan already queued, please wait",
			})
		}
	}
}

// LastScan returns the report of the most recent scan cycle.
func LastScan(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, ok := d.Orchestrator.LastReport()
		if !ok {
			writeJSON(w, d.Logger, http.StatusNotFound, errorResponse{Error: "no scan cycle has run yet"})
			return
		}
		writeJSON(w, d.Logger, http.StatusOK, report)
	}
}
