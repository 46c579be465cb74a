package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/folio/internal/domain"
	"github.com/MrSnakeDoc/folio/internal/httpserver/deps"
)

func GetLinks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		links, err := d.Links.List(r.Context())
		if err != nil {
			writeDomainError(w, d.Logger, err, "Link not found", "Failed to fetch links")
			return
		}
		writeJSON(w, http.StatusOK, links)
	}
}

func CreateLink(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in domain.LinkInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		link, err := d.Links.Create(r.Context(), in)
		if err != nil {
			writeDomainError(w, d.Logger, err, "Link not found", "Failed to create link")
			return
		}
		writeJSON(w, http.StatusOK, link)
	}
}

func UpdateLink(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := linkID(w, r)
		if !ok {
			return
		}

		var in domain.LinkInput
		if err := decodeJSON(r, &in); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		link, err := d.Links.Update(r.Context(), id, in)
		if err != nil {
			writeDomainError(w, d.Logger, err, "Link not found", "Failed to update link")
			return
		}
		writeJSON(w, http.StatusOK, link)
	}
}

func DeleteLink(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := linkID(w, r)
		if !ok {
			return
		}

		if err := d.Links.Delete(r.Context(), id); err != nil {
			writeDomainError(w, d.Logger, err, "Link not found", "Failed to delete link")
			return
		}
		writeSuccess(w)
	}
}

type reorderLinksRequest struct {
	Links []struct {
		ID int `json:"id"`
	} `json:"links"`
}

// ReorderLinks takes the links in their new order; only ids are read.
func ReorderLinks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reorderLinksRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.Links == nil {
			writeError(w, http.StatusBadRequest, "Links array is required")
			return
		}

		ids := make([]int, len(req.Links))
		for i, l := range req.Links {
			ids[i] = l.ID
		}

		if _, err := d.Links.Reorder(r.Context(), ids); err != nil {
			writeDomainError(w, d.Logger, err, "Link not found", "Failed to reorder links")
			return
		}
		writeSuccess(w)
	}
}

func linkID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Link not found")
		return 0, false
	}
	return id, true
}
