package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/folio/internal/httpserver/deps"
	"github.com/MrSnakeDoc/folio/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/folio/internal/httpserver/mw"
)

func init() { RegisterAPI(registerAuth) }

func registerAuth(r chi.Router, d deps.Deps) {
	limit := mw.RateLimit(mw.RateLimitConfig{
		Name:         "login",
		Burst:        d.AuthBurst,
		RefillPerMin: d.AuthRefillPerMin,
		FailuresOnly: true,
		MaxClients:   10000,
		TrustProxy:   d.TrustProxy,
		Now:          d.TimeNow,
	})
	r.With(limit).Post("/auth", handlers.Login(d))
}
