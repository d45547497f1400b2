package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/treechat-dev/treechat/internal/domain"
	"github.com/treechat-dev/treechat/internal/middleware"
)

type sendMessageRequest struct {
	ChatId int64  `validate:"required" json:"chat_id"`
	Text   string `validate:"required" json:"text"`
}

type scheduleMessageRequest struct {
	ChatId int64  `validate:"required" json:"chat_id"`
	Text   string `validate:"required" json:"text"`
	FireAt string `validate:"required" json:"fire_at"`
	Tz     string `validate:"required" json:"tz"`
}

type messageCreatedResponse struct {
	Id int64 `json:"id"`
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r)
	if user == nil {
		http.Error(w, "Please sign-in", http.StatusUnauthorized)
		return
	}

	var req sendMessageRequest
	if err := loadAndValidateRequestBody(r.Body, &req); err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}

	id, err := h.message.Send(domain.Message{ChatId: req.ChatId, AuthorId: user.Id, Text: req.Text})
	if err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, messageCreatedResponse{Id: id})
}

func (h *Handler) ScheduleMessage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r)
	if user == nil {
		http.Error(w, "Please sign-in", http.StatusUnauthorized)
		return
	}

	var req scheduleMessageRequest
	if err := loadAndValidateRequestBody(r.Body, &req); err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}

	id, err := h.message.ScheduleMessage(domain.Message{ChatId: req.ChatId, AuthorId: user.Id, Text: req.Text}, req.FireAt, req.Tz)
	if err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, messageCreatedResponse{Id: id})
}

func (h *Handler) CancelScheduledMessage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r)
	if user == nil {
		http.Error(w, "Please sign-in", http.StatusUnauthorized)
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Bad message id", http.StatusBadRequest)
		return
	}

	if err := h.message.CancelScheduledMessage(user.Id, id); err != nil {
		writeErrorAndStatusCode(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}
