package routes

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MrSnakeDoc/gamedeck/internal/httpserver/deps"
	"github.com/MrSnakeDoc/gamedeck/internal/httpserver/handlers"
)

// Refresh is also bounded by the auth store's own timeout.
func init() { Register(registerAuth, middleware.Timeout(25*time.Second)) }

func registerAuth(r chi.Router, d deps.Deps) {
	r.Get("/api/auth", handlers.Sessions(d))
	r.Post("/api/auth/{platform}/login", handlers.Login(d))
	r.Post("/api/auth/{platform}/refresh", handlers.Refresh(d))
	r.Post("/api/auth/{platform}/logout", handlers.Logout(d))
}
