package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/folio/internal/httpserver/deps"
	"github.com/MrSnakeDoc/folio/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/folio/internal/httpserver/mw"
)

func init() { RegisterAPI(registerLinks) }

func registerLinks(r chi.Router, d deps.Deps) {
	r.Get("/links", handlers.GetLinks(d))

	admin := r.With(mw.BearerAuth(d.Auth, d.TrustProxy, d.Logger))
	admin.Post("/links", handlers.CreateLink(d))
	// reorder must be registered before /links/{id}
	admin.Put("/links/reorder", handlers.ReorderLinks(d))
	admin.Put("/links/{id}", handlers.UpdateLink(d))
	admin.Delete("/links/{id}", handlers.DeleteLink(d))
}
