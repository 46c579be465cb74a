package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/folio/internal/httpserver/deps"
	"github.com/MrSnakeDoc/folio/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/folio/internal/httpserver/mw"
)

func init() { RegisterAPI(registerAdmin) }

func registerAdmin(r chi.Router, d deps.Deps) {
	admin := r.With(mw.BearerAuth(d.Auth, d.TrustProxy, d.Logger))
	admin.Get("/admin/orphans", handlers.Orphans(d))
	admin.Post("/admin/reseed", handlers.Reseed(d))
}
