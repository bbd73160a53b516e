package routes

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/gamedeck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/gamedeck/internal/httpserver/handlers"
)

func init() { Register(registerGames, middleware.Timeout(10*time.Second)) }

func registerGames(r chi.Router, d deps.Deps) {
	r.Get("/api/games", handlers.ListGames(d))
	r.Get("/api/games/{key}", handlers.GetGame(d))
	r.Delete("/api/games/{key}", handlers.DeleteGame(d))
	r.Put("/api/games/{key}/active", handlers.SetActivePlatform(d))
	r.Delete("/api/games/{key}/bindings/{platform}", handlers.UnbindPlatform(d))
	r.Get("/api/games/{key}/recommendation", handlers.Recommendation(d))
	r.Get("/api/games/{key}/content", handlers.Content(d))
	r.Put("/api/games/{key}/shared-install", handlers.SharedInstall(d))
	r.Post("/api/games/{key}/launch", handlers.Launch(d))
}
