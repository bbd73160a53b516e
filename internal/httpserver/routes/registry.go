// Package routes collects the control API endpoints. Each file registers
// its group from init, so adding an endpoint never touches the server.
package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/gamedeck/internal/httpserver/deps"
)

type (
	Registrar  func(r chi.Router, d deps.Deps)
	Middleware = func(http.Handler) http.Handler
)

type entry struct {
	reg Registrar
	mws []Middleware
}

var registry []entry

// Register a registrar with optional middlewares applied to its routes only.
func Register(reg Registrar, mws ...Middleware) {
	registry = append(registry, entry{reg: reg, mws: mws})
}

// RegisterAll mounts every registrar on r. It is called once from NewRouter.
func RegisterAll(r chi.Router, d deps.Deps) {
	for _, e := range registry {
		r.Group(func(g chi.Router) {
			g.Use(e.mws...)
			e.reg(g, d)
		})
	}
}
