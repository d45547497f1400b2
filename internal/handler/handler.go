package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/treechat-dev/treechat/internal/config"
	"github.com/treechat-dev/treechat/internal/confirmation"
	"github.com/treechat-dev/treechat/internal/logger"
	"github.com/treechat-dev/treechat/internal/service"
	"github.com/treechat-dev/treechat/internal/utils"
)

// ConfirmationService is the orchestrator surface the confirm endpoint needs.
type ConfirmationService interface {
	Confirm(subject, code, actionKey string) (confirmation.Result, error)
}

// Pinger reports dependency health for the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	auth          service.AuthService
	message       service.MessageService
	confirmations ConfirmationService
	health        Pinger
	cfg           *config.Config
}

func New(auth service.AuthService, message service.MessageService, confirmations ConfirmationService, health Pinger, cfg *config.Config) *Handler {
	return &Handler{auth, message, confirmations, health, cfg}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Error("failed to encode response", "error", err)
	}
}

func loadAndValidateRequestBody(r io.ReadCloser, body any) error {
	return utils.DecodeValidate(r, body)
}

func writeErrorAndStatusCode(w http.ResponseWriter, err error) {
	utils.WriteErrorAndStatusCode(w, err)
}
