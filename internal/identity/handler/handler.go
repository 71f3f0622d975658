// Package handler exposes gate-side identity verification. It mounts behind
// the admin token alongside check-in.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"stagepass/internal/identity"
	"stagepass/internal/transport/http/shared"
	"stagepass/pkg/requestcontext"
)

// Service defines the verification operation the handler needs.
type Service interface {
	VerifyHolder(ctx context.Context, entryToken, transactionID string) (*identity.Result, error)
}

// Handler wires the verification endpoint to the verification service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an identity verification handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterAdmin mounts the verification endpoint.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/verify", h.HandleVerify)
}

// HandleVerify handles POST /verify at the venue gate.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := shared.DecodeAndPrepare[VerifyRequest](w, r, h.logger, requestID)
	if !ok {
		return
	}

	result, err := h.service.VerifyHolder(ctx, req.EntryToken, req.TransactionID)
	if err != nil {
		h.logger.WarnContext(ctx, "identity verification failed",
			"request_id", requestID,
			"transaction_id", req.TransactionID,
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "identity verification served",
		"request_id", requestID,
		"match", result.Match,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	shared.WriteJSON(w, http.StatusOK, result)
}
