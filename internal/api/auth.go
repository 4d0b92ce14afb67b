package api

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"garmentsapi/internal/auth"
	"garmentsapi/internal/middleware"
	"garmentsapi/internal/util"
)

// IssueToken signs whatever identity object the client posts. The only
// required claim is email; idToken is consumed here and never signed.
func (h *Handlers) IssueToken(w http.ResponseWriter, r *http.Request) {
	rid := middleware.RequestID(r.Context())
	var body map[string]any
	if err := util.DecodeJSON(r, &body); err != nil {
		badJSON(w, r)
		return
	}
	idToken, _ := body["idToken"].(string)
	delete(body, "idToken")
	email, _ := body["email"].(string)
	if strings.TrimSpace(email) == "" {
		util.WriteError(w, http.StatusBadRequest, "bad_request", auth.ErrValidation.Error(), rid)
		return
	}
	if err := auth.CheckIDToken(r.Context(), h.verifier, idToken, email); err != nil {
		log.Printf("id_token_rejected email=%s request_id=%s err=%v", strings.ToLower(strings.TrimSpace(email)), rid, err)
		util.WriteError(w, http.StatusUnauthorized, "unauthorized", "identity token rejected", rid)
		return
	}
	token, id, err := h.gate.Issue(body)
	if err != nil {
		if errors.Is(err, auth.ErrValidation) {
			util.WriteError(w, http.StatusBadRequest, "bad_request", err.Error(), rid)
			return
		}
		writeServiceError(w, r, err)
		return
	}
	h.gate.SetCookie(w, token)
	log.Printf("token_issued email=%s expires_at=%s request_id=%s", id.Email, id.ExpiresAt.Format(time.RFC3339), rid)
	util.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.gate.ClearCookie(w)
	util.WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}
