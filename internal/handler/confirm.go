package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Confirm handles the link clicked from the confirmation mail. On success the
// browser is redirected back to where the user started; a confirmed code with
// no remaining continuation reads as 404, matching a link that never existed.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	email := chi.URLParam(r, "email")
	action := chi.URLParam(r, "action")

	res, err := h.confirmations.Confirm(email, code, action)
	if err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}
	if !res.ContinuationRun {
		http.Error(w, "No pending confirmation", http.StatusNotFound)
		return
	}

	http.Redirect(w, r, res.Redirect, http.StatusFound)
}
