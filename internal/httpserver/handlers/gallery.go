package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/folio/internal/domain"
	"github.com/MrSnakeDoc/folio/internal/gallery"
	"github.com/MrSnakeDoc/folio/internal/httpserver/deps"
	"github.com/MrSnakeDoc/folio/internal/logger"
)

// formOverhead leaves room for the text fields next to the file part.
const formOverhead = 1 << 20

// GetGallery always answers 200; on database failure the service already
// substitutes a fallback.
func GetGallery(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Images.List(r.Context()))
	}
}

// CreateImage accepts a multipart form with the file under "image".
func CreateImage(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, d.MaxUploadBytes+formOverhead)
		if err := r.ParseMultipartForm(d.MaxUploadBytes); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "File too large")
				return
			}
			writeError(w, http.StatusBadRequest, "No image file provided")
			return
		}
		defer func() {
			if r.MultipartForm != nil {
				_ = r.MultipartForm.RemoveAll()
			}
		}()

		file, header, err := r.FormFile("image")
		if err != nil {
			writeError(w, http.StatusBadRequest, "No image file provided")
			return
		}
		defer file.Close()

		if header.Size > d.MaxUploadBytes {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}

		meta, ok := imageMetaFromForm(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "Missing required fields")
			return
		}

		img, err := d.Images.Upload(r.Context(), gallery.Upload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Body:        file,
			Meta:        meta,
		})
		if err != nil {
			writeDomainError(w, d.Logger, err, "Image not found", "Failed to create image")
			return
		}

		d.Logger.Info("image created", logger.String("id", img.ID), logger.String("src", img.Src))
		writeJSON(w, http.StatusOK, img)
	}
}

func imageMetaFromForm(r *http.Request) (domain.NewImage, bool) {
	meta := domain.NewImage{
		Alt:         strings.TrimSpace(r.FormValue("alt")),
		Description: strings.TrimSpace(r.FormValue("description")),
		Category:    domain.Category(strings.ToLower(strings.TrimSpace(r.FormValue("category")))),
	}
	year, err := strconv.Atoi(strings.TrimSpace(r.FormValue("year")))
	if err != nil {
		return meta, false
	}
	meta.Year = year

	if raw := strings.TrimSpace(r.FormValue("width")); raw != "" {
		width, err := strconv.Atoi(raw)
		if err != nil {
			return meta, false
		}
		meta.Width = width
	}
	return meta, true
}

// RegisterImage records an image that is already uploaded.
func RegisterImage(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var meta domain.NewImage
		if err := decodeJSON(r, &meta); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		img, err := d.Images.Register(r.Context(), meta)
		if err != nil {
			writeDomainError(w, d.Logger, err, "Image not found", "Failed to create existing image")
			return
		}
		writeJSON(w, http.StatusOK, img)
	}
}

func UpdateImage(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var patch domain.ImagePatch
		if err := decodeJSON(r, &patch); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		img, err := d.Images.Update(r.Context(), id, patch)
		if err != nil {
			writeDomainError(w, d.Logger, err, "Image not found", "Failed to update image "+id)
			return
		}
		writeJSON(w, http.StatusOK, img)
	}
}

type reorderImagesRequest struct {
	IDs []string `json:"ids"`
}

// ReorderImages persists a full ordered id list in one transaction.
func ReorderImages(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reorderImagesRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		if err := d.Images.Reorder(r.Context(), req.IDs); err != nil {
			writeDomainError(w, d.Logger, err, "Image not found", "Failed to reorder images")
			return
		}
		writeSuccess(w)
	}
}

func DeleteImage(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		if err := d.Images.Delete(r.Context(), id); err != nil {
			writeDomainError(w, d.Logger, err, "Image not found", "Failed to delete image "+id)
			return
		}
		d.Logger.Info("image deleted", logger.String("id", id))
		writeSuccess(w)
	}
}
