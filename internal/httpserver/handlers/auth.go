package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/folio/internal/httpserver/deps"
	"github.com/MrSnakeDoc/folio/internal/logger"
	"github.com/MrSnakeDoc/folio/internal/utils"
)

type authRequest struct {
	Password string `json:"password"`
}

// Login checks the admin password. The client keeps the password itself as
// its bearer token.
func Login(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		if !d.Auth.Check(req.Password) {
			d.Logger.Warn("failed admin login",
				logger.String("remote_ip", utils.ClientIP(r, d.TrustProxy)))
			writeError(w, http.StatusUnauthorized, "Invalid password")
			return
		}
		writeSuccess(w)
	}
}
