package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/folio/internal/httpserver/deps"
	"github.com/MrSnakeDoc/folio/internal/logger"
)

type componentStatus struct {
	OK       bool   `json:"ok"`
	Required bool   `json:"required"`
	Error    string `json:"error,omitempty"`
}

type readyzResponse struct {
	Ready      bool                       `json:"ready"`
	Components map[string]componentStatus `json:"components"`
}

// Readyz pings Postgres and, when configured, Redis. Only Postgres decides
// readiness: without Redis the gallery is served uncached.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := readyzResponse{Ready: true, Components: map[string]componentStatus{}}

		pg := check(ctx, d.Postgres, true)
		resp.Components["postgres"] = pg
		if !pg.OK {
			resp.Ready = false
			d.Logger.Warn("readyz: postgres unavailable", logger.String("error", pg.Error))
		}

		if d.Redis != nil {
			resp.Components["redis"] = check(ctx, d.Redis, false)
		}

		status := http.StatusOK
		if !resp.Ready {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, status, resp)
	}
}

func check(ctx context.Context, p deps.Pinger, required bool) componentStatus {
	if p == nil {
		return componentStatus{OK: false, Required: required, Error: "not configured"}
	}
	if err := p.Ping(ctx); err != nil {
		return componentStatus{OK: false, Required: required, Error: err.Error()}
	}
	return componentStatus{OK: true, Required: required}
}
