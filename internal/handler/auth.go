package handler

import (
	"net/http"

	"github.com/treechat-dev/treechat/internal/domain"
	"github.com/treechat-dev/treechat/internal/middleware"
)

type credentials struct {
	Email    string `validate:"required" json:"email"`
	Password string `validate:"required" json:"password"`
}

type restorePasswordRequest struct {
	Email       string `validate:"required" json:"email"`
	NewPassword string `validate:"required" json:"new_password"`
}

type changePasswordRequest struct {
	OldPassword string `validate:"required" json:"old_password"`
	NewPassword string `validate:"required" json:"new_password"`
}

type changeEmailRequest struct {
	NewEmail string `validate:"required" json:"new_email"`
}

// origin returns the frontend page to redirect back to after confirmation.
func origin(r *http.Request) string {
	return r.Header.Get("Origin")
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := loadAndValidateRequestBody(r.Body, &creds); err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}

	if err := h.auth.Register(domain.Credentials{Email: creds.Email, Password: creds.Password}, origin(r)); err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	w.Write([]byte("Created. Check your inbox for the confirmation link"))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := loadAndValidateRequestBody(r.Body, &creds); err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}

	accessToken, err := h.auth.Login(domain.Credentials{Email: creds.Email, Password: creds.Password})
	if err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}
	cookie := &http.Cookie{
		Path:     "/",
		Name:     "accessToken",
		Value:    accessToken,
		MaxAge:   int(h.cfg.JwtTTL().Seconds()),
		HttpOnly: true,
	}
	http.SetCookie(w, cookie)

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("You logged in"))
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie := &http.Cookie{
		Path:     "/",
		Name:     "accessToken",
		Value:    "",
		MaxAge:   -1,
		HttpOnly: true,
	}
	http.SetCookie(w, cookie)

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) RestorePassword(w http.ResponseWriter, r *http.Request) {
	var req restorePasswordRequest
	if err := loadAndValidateRequestBody(r.Body, &req); err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}

	if err := h.auth.RestorePassword(req.Email, req.NewPassword, origin(r)); err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	w.Write([]byte("Check your inbox for the confirmation link"))
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r)
	if user == nil {
		http.Error(w, "Please sign-in", http.StatusUnauthorized)
		return
	}

	var req changePasswordRequest
	if err := loadAndValidateRequestBody(r.Body, &req); err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}

	if err := h.auth.ChangePassword(user.Email, req.OldPassword, req.NewPassword, origin(r)); err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	w.Write([]byte("Check your inbox for the confirmation link"))
}

func (h *Handler) ChangeEmail(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r)
	if user == nil {
		http.Error(w, "Please sign-in", http.StatusUnauthorized)
		return
	}

	var req changeEmailRequest
	if err := loadAndValidateRequestBody(r.Body, &req); err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}

	if err := h.auth.ChangeEmail(user.Email, req.NewEmail, origin(r)); err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	w.Write([]byte("Check the new mailbox for the confirmation link"))
}
