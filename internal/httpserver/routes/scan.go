package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/gamedeck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/gamedeck/internal/httpserver/handlers"
)

func init() { Register(registerScan) }

func registerScan(r chi.Router, d deps.Deps) {
	r.Post("/api/scan", handlers.Scan(d))
	r.Get("/api/scan/last", handlers.LastScan(d))
	r.Get("/api/status", handlers.Status(d))
}
