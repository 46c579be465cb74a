package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/folio/internal/httpserver/deps"
	"github.com/MrSnakeDoc/folio/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/folio/internal/httpserver/mw"
)

func init() { RegisterAPI(registerGallery) }

func registerGallery(r chi.Router, d deps.Deps) {
	r.Get("/gallery", handlers.GetGallery(d))

	admin := r.With(mw.BearerAuth(d.Auth, d.TrustProxy, d.Logger))
	admin.Post("/gallery", handlers.CreateImage(d))
	admin.Post("/gallery/existing", handlers.RegisterImage(d))
	admin.Put("/gallery/reorder", handlers.ReorderImages(d))
	admin.Put("/gallery/{id}", handlers.UpdateImage(d))
	admin.Delete("/gallery/{id}", handlers.DeleteImage(d))
}
