package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"garmentsapi/internal/models"
	"garmentsapi/internal/service"
	"garmentsapi/internal/util"
)

func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request) {
	page, limit := parsePagination(r)
	q := r.URL.Query()
	items, total, err := h.svc.ListProducts(r.Context(), models.ProductQuery{
		Category: q.Get("category"),
		Search:   q.Get("search"),
		Limit:    limit,
		Offset:   (page - 1) * limit,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, pageBody(items, total, page, limit))
}

func (h *Handlers) HomeProducts(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.HomeProducts(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []models.Product{}
	}
	util.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, p)
}

func (h *Handlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var in service.ProductInput
	if err := util.DecodeJSON(r, &in); err != nil {
		badJSON(w, r)
		return
	}
	p, err := h.svc.CreateProduct(r.Context(), caller(r), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusCreated, p)
}

func (h *Handlers) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var in service.ProductInput
	if err := util.DecodeJSON(r, &in); err != nil {
		badJSON(w, r)
		return
	}
	p, err := h.svc.UpdateProduct(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, p)
}

func (h *Handlers) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}
