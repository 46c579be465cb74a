package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/folio/internal/httpserver/deps"
)

type (
	Registrar  func(r chi.Router, d deps.Deps)
	Middleware = func(http.Handler) http.Handler
)

type entry struct {
	reg Registrar
	mws []Middleware
}

var (
	registry    []entry // mounted at the root (ops endpoints)
	apiRegistry []entry // mounted under APIPrefix
)

// APIPrefix is where the gallery API lives.
const APIPrefix = "/api"

// Register a root registrar with optional per-route middlewares.
func Register(reg Registrar, mws ...Middleware) {
	registry = append(registry, entry{reg: reg, mws: mws})
}

// RegisterAPI registers a registrar mounted under APIPrefix.
func RegisterAPI(reg Registrar, mws ...Middleware) {
	apiRegistry = append(apiRegistry, entry{reg: reg, mws: mws})
}

// RegisterAll is called once from server.New(). apiMws wrap the whole API
// subtree (CORS, host enforcement).
func RegisterAll(r chi.Router, d deps.Deps, apiMws ...Middleware) {
	mount(r, registry, d)
	r.Route(APIPrefix, func(api chi.Router) {
		api.Use(apiMws...)
		mount(api, apiRegistry, d)
	})
}

func mount(r chi.Router, entries []entry, d deps.Deps) {
	for _, e := range entries {
		if len(e.mws) == 0 {
			e.reg(r, d)
			continue
		}
		e.reg(r.With(e.mws...), d)
	}
}
