package handlers

import (
	"net/http"
	"time"

	"github.com/MrSnakeDoc/folio/internal/httpserver/deps"
	"github.com/MrSnakeDoc/folio/internal/logger"
)

type orphanResponse struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// Orphans lists bucket objects that no image references.
func Orphans(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Orphans == nil {
			writeError(w, http.StatusNotFound, "Orphan listing is disabled")
			return
		}

		objects, err := d.Orphans.FindOrphans(r.Context())
		if err != nil {
			d.Logger.Error("failed to list orphans", logger.Error(err))
			writeError(w, http.StatusInternalServerError, "Failed to list orphans")
			return
		}

		out := make([]orphanResponse, 0, len(objects))
		for _, o := range objects {
			out = append(out, orphanResponse{Key: o.Key, Size: o.Size, LastModified: o.LastModified})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// Reseed triggers the seed loader without waiting for it.
func Reseed(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.ReseedTrigger == nil {
			writeError(w, http.StatusNotFound, "No seed file configured")
			return
		}

		select {
		case d.ReseedTrigger <- struct{}{}:
			d.Logger.Info("manual reseed triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, http.StatusAccepted, successResponse{Success: true})
		default:
			d.Logger.Warn("reseed already in progress",
				logger.String("remote_ip", r.RemoteAddr))
			writeError(w, http.StatusTooManyRequests, "Reseed already in progress")
		}
	}
}
