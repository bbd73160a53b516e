package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/gamedeck/internal/domain"
	"github.com/MrSnakeDoc/gamedeck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/gamedeck/internal/orchestrator"
)

type componentStatus struct {
	OK       bool   `json:"ok"`
	Count    *int   `json:"count,omitempty"`
	LastScan string `json:"last_scan,omitempty"`
	Outcome  string `json:"outcome,omitempty"`
	Mode     string `json:"mode,omitempty"`
	Error    string `json:"error,omitempty"`
}

type statusResponse struct {
	Mode       string                     `json:"mode"`
	Components map[string]componentStatus `json:"components"`
}

// Status reports the health of the state backend, the registry, the
// sessions and the last scan cycle.
func Status(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		games := d.Games.Count()

		authenticated := 0
		sessions := d.Orchestrator.Sessions()
		for _, s := range sessions {
			if s.State == domain.StateAuthenticated {
				authenticated++
			}
		}

		components := map[string]componentStatus{
			"state":    checkBackend(r.Context(), d),
			"registry": {OK: true, Count: &games},
			"sessions": {OK: true, Count: &authenticated},
			"scan":     scanStatus(d),
		}

		writeJSON(w, d.Logger, http.StatusOK, statusResponse{
			Mode:       determineMode(components),
			Components: components,
		})
	}
}

func determineMode(components map[string]componentStatus) string {
	// State not durable = critical
	if st, ok := components["state"]; ok && !st.OK {
		return "critical"
	}
	// Some adapters failing = degraded
	if scan, ok := components["scan"]; ok && !scan.OK {
		return "degraded"
	}
	return "optimal"
}

func scanStatus(d deps.Deps) componentStatus {
	report, ok := d.Orchestrator.LastReport()
	if !ok {
		return componentStatus{OK: false, LastScan: "never"}
	}
	return componentStatus{
		OK:       report.Outcome == orchestrator.OutcomeSuccess,
		LastScan: report.FinishedAt.Format(time.RFC3339),
		Outcome:  string(report.Outcome),
	}
}

func checkBackend(parent context.Context, d deps.Deps) componentStatus {
	if d.Backend == nil {
		return componentStatus{OK: true, Mode: d.StateBackend}
	}

	ctx, cancel := context.WithTimeout(parent, 2*time.Second)
	defer cancel()

	if err := d.Backend.Ping(ctx); err != nil {
		return componentStatus{OK: false, Mode: d.StateBackend, Error: err.Error()}
	}
	return componentStatus{OK: true, Mode: d.StateBackend}
}
