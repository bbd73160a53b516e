package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/gamedeck/internal/httpserver/deps"
)

type readyzResponse struct {
	Ready  bool   `json:"ready"`
	Reason string `json:"reason,omitempty"`
}

// Readyz is ready once the first scan cycle has completed and the state
// backend answers.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := d.Orchestrator.LastReport(); !ok {
			writeJSON(w, d.Logger, http.StatusServiceUnavailable, readyzResponse{Reason: "first scan pending"})
			return
		}
		if st := checkBackend(r.Context(), d); !st.OK {
			writeJSON(w, d.Logger, http.StatusServiceUnavailable, readyzResponse{Reason: "state backend: " + st.Error})
			return
		}
		writeJSON(w, d.Logger, http.StatusOK, readyzResponse{Ready: true})
	}
}
