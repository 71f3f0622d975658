// Package handler exposes the concert catalog. Listing and lookup are
// public; event creation mounts behind the admin token.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"stagepass/internal/event/models"
	"stagepass/internal/event/service"
	"stagepass/internal/transport/http/shared"
	id "stagepass/pkg/domain"
	"stagepass/pkg/requestcontext"
)

// Service defines the catalog operations the handler needs.
type Service interface {
	CreateEvent(ctx context.Context, params service.CreateEventParams) (*models.Event, error)
	GetEvent(ctx context.Context, eventID id.EventID) (*models.Event, error)
	ListUpcoming(ctx context.Context) ([]*models.Event, error)
	RescheduleWindow(ctx context.Context, eventID id.EventID, opensAt, closesAt time.Time) (*models.Event, error)
}

// Handler wires catalog endpoints to the event service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an event handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the public catalog endpoints.
func (h *Handler) Register(r chi.Router) {
	r.Get("/events", h.HandleList)
	r.Get("/events/{eventID}", h.HandleGet)
}

// RegisterAdmin mounts event creation and window rescheduling.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/events", h.HandleCreate)
	r.Put("/events/{eventID}/window", h.HandleRescheduleWindow)
}

// HandleCreate handles POST /events.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := shared.DecodeAndPrepare[CreateEventRequest](w, r, h.logger, requestID)
	if !ok {
		return
	}

	event, err := h.service.CreateEvent(ctx, service.CreateEventParams{
		Title:                req.Title,
		Venue:                req.Venue,
		StartsAt:             req.ParsedStartsAt(),
		RegistrationOpensAt:  req.ParsedOpensAt(),
		RegistrationClosesAt: req.ParsedClosesAt(),
		TicketTypes:          req.TicketTypeModels(),
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "event create failed",
			"request_id", requestID,
			"title", req.Title,
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "event created",
		"request_id", requestID,
		"event_id", event.ID.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	shared.WriteJSON(w, http.StatusCreated, event)
}

// HandleList handles GET /events, listing upcoming events only.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.ListUpcoming(r.Context())
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}

// HandleRescheduleWindow handles PUT /events/{eventID}/window.
func (h *Handler) HandleRescheduleWindow(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	req, ok := shared.DecodeAndPrepare[WindowRequest](w, r, h.logger, requestID)
	if !ok {
		return
	}

	event, err := h.service.RescheduleWindow(ctx, eventID, req.ParsedOpensAt(), req.ParsedClosesAt())
	if err != nil {
		h.logger.ErrorContext(ctx, "window reschedule failed",
			"request_id", requestID,
			"event_id", eventID.String(),
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, event)
}

// HandleGet handles GET /events/{eventID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	eventID, err := id.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	event, err := h.service.GetEvent(r.Context(), eventID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, event)
}
