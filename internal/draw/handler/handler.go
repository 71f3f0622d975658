// Package handler exposes the draw trigger. Intended for operator tooling;
// the route sits behind the admin token middleware.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"stagepass/internal/draw/service"
	"stagepass/internal/transport/http/shared"
	id "stagepass/pkg/domain"
	"stagepass/pkg/requestcontext"
)

// Service defines the draw operations the handler needs.
type Service interface {
	ExecuteDraw(ctx context.Context, eventID id.EventID) (*service.Result, error)
}

// Handler wires the draw endpoint to the draw service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a draw handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the draw endpoint on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/events/{eventID}/draw", h.HandleExecuteDraw)
}

// HandleExecuteDraw handles POST /events/{eventID}/draw.
func (h *Handler) HandleExecuteDraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	result, err := h.service.ExecuteDraw(ctx, eventID)
	if err != nil {
		h.logger.ErrorContext(ctx, "draw execution failed",
			"request_id", requestID,
			"event_id", eventID.String(),
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "draw completed",
		"request_id", requestID,
		"event_id", eventID.String(),
		"winners", result.Winners,
		"losers", result.Losers,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	shared.WriteJSON(w, http.StatusOK, result)
}
