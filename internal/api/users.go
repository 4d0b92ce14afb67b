package api

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"garmentsapi/internal/middleware"
	"garmentsapi/internal/models"
	"garmentsapi/internal/util"
)

type recordLoginRequest struct {
	Name     string `json:"name"`
	PhotoURL string `json:"photoURL"`
}

// RecordLogin upserts the signed-in user. The email always comes from the
// session, never from the body.
func (h *Handlers) RecordLogin(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.Identity(r.Context())
	var req recordLoginRequest
	if r.ContentLength != 0 {
		if err := util.DecodeJSON(r, &req); err != nil {
			badJSON(w, r)
			return
		}
	}
	u, created, err := h.svc.RecordLogin(r.Context(), id.Email, req.Name, req.PhotoURL)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	util.WriteJSON(w, status, u)
}

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.Identity(r.Context())
	u, err := h.svc.GetUser(r.Context(), id.Email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, u)
}

func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	page, limit := parsePagination(r)
	q := r.URL.Query()
	items, total, err := h.svc.ListUsers(r.Context(), models.UserQuery{
		Q:      q.Get("q"),
		Role:   q.Get("role"),
		Status: q.Get("status"),
		Limit:  limit,
		Offset: (page - 1) * limit,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, pageBody(items, total, page, limit))
}

func emailParam(r *http.Request) string {
	raw := chi.URLParam(r, "email")
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func (h *Handlers) SetUserRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role string `json:"role"`
	}
	if err := util.DecodeJSON(r, &req); err != nil {
		badJSON(w, r)
		return
	}
	email := emailParam(r)
	if err := h.svc.SetUserRole(r.Context(), caller(r), email, models.UserRole(req.Role)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	u, err := h.svc.GetUser(r.Context(), email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, u)
}

func (h *Handlers) SetUserStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status          string `json:"status"`
		SuspendReason   string `json:"suspendReason"`
		SuspendFeedback string `json:"suspendFeedback"`
	}
	if err := util.DecodeJSON(r, &req); err != nil {
		badJSON(w, r)
		return
	}
	email := emailParam(r)
	if err := h.svc.SetUserStatus(r.Context(), caller(r), email, models.UserStatus(req.Status), req.SuspendReason, req.SuspendFeedback); err != nil {
		writeServiceError(w, r, err)
		return
	}
	u, err := h.svc.GetUser(r.Context(), email)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, http.StatusOK, u)
}
