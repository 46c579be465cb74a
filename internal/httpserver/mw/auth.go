package mw

import (
	"net/http"

	"github.com/MrSnakeDoc/folio/internal/logger"
	"github.com/MrSnakeDoc/folio/internal/utils"
)

// HeaderChecker validates an Authorization header.
type HeaderChecker interface {
	CheckHeader(header string) bool
}

// BearerAuth rejects requests whose Authorization header does not carry the
// admin secret with 401 {"error":"Unauthorized"}.
func BearerAuth(auth HeaderChecker, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !auth.CheckHeader(r.Header.Get("Authorization")) {
				log.Debug("BearerAuth: rejected",
					logger.String("method", r.Method),
					logger.String("path", r.URL.Path),
					logger.String("remote_ip", utils.ClientIP(r, trustProxy)))
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
