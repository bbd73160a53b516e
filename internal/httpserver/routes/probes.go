package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/gamedeck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/gamedeck/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/gamedeck/internal/metrics"
)

func init() { Register(registerProbes) }

func registerProbes(r chi.Router, d deps.Deps) {
	r.Get("/healthz", handlers.Healthz(d))
	r.Get("/readyz", handlers.Readyz(d))
	if d.Gatherer != nil {
		r.Method("GET", "/metrics", metrics.Handler(d.Gatherer))
	}
}
