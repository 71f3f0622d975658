// Package handler exposes issued tickets to their holders and the gate
// check-in endpoint to venue staff. Holder routes require an authenticated
// user; check-in mounts behind the admin token.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"stagepass/internal/ticket/models"
	"stagepass/internal/transport/http/shared"
	id "stagepass/pkg/domain"
	dErrors "stagepass/pkg/domain-errors"
	"stagepass/pkg/requestcontext"
)

// Service defines the ticket operations the handler needs.
type Service interface {
	ListTickets(ctx context.Context, userID id.UserID) ([]*models.Ticket, error)
	GetTicket(ctx context.Context, userID id.UserID, ticketID id.TicketID) (*models.Ticket, error)
	QRCode(ctx context.Context, userID id.UserID, ticketID id.TicketID) ([]byte, error)
	CheckIn(ctx context.Context, entryToken string) (*models.Ticket, error)
}

// Handler wires ticket endpoints to the ticket service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a ticket handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts holder-facing ticket endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/tickets", h.HandleList)
	r.Get("/tickets/{ticketID}", h.HandleGet)
	r.Get("/tickets/{ticketID}/qr", h.HandleQRCode)
}

// RegisterAdmin mounts the gate check-in endpoint. The caller is expected to
// guard the router with the admin token middleware.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/checkin", h.HandleCheckIn)
}

// HandleList handles GET /tickets.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}

	tickets, err := h.service.ListTickets(ctx, userID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"tickets": tickets})
}

// HandleGet handles GET /tickets/{ticketID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}
	ticketID, ok := h.pathTicketID(w, r)
	if !ok {
		return
	}

	ticket, err := h.service.GetTicket(ctx, userID, ticketID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, ticket)
}

// HandleQRCode handles GET /tickets/{ticketID}/qr. The response body is the
// PNG itself so digital-ticket clients can embed the URL directly.
func (h *Handler) HandleQRCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}
	ticketID, ok := h.pathTicketID(w, r)
	if !ok {
		return
	}

	png, err := h.service.QRCode(ctx, userID, ticketID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		h.logger.WarnContext(ctx, "failed to write QR code response",
			"request_id", requestcontext.RequestID(ctx),
			"ticket_id", ticketID.String(),
			"error", err,
		)
	}
}

// HandleCheckIn handles POST /checkin at the venue gate.
func (h *Handler) HandleCheckIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := shared.DecodeAndPrepare[CheckInRequest](w, r, h.logger, requestID)
	if !ok {
		return
	}

	ticket, err := h.service.CheckIn(ctx, req.EntryToken)
	if err != nil {
		h.logger.WarnContext(ctx, "check-in rejected",
			"request_id", requestID,
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "ticket checked in",
		"request_id", requestID,
		"ticket_id", ticket.ID.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	shared.WriteJSON(w, http.StatusOK, ticket)
}

func (h *Handler) requireUser(w http.ResponseWriter, ctx context.Context) (id.UserID, bool) {
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.UserID{}, false
	}
	return userID, true
}

func (h *Handler) pathTicketID(w http.ResponseWriter, r *http.Request) (id.TicketID, bool) {
	ticketID, err := id.ParseTicketID(chi.URLParam(r, "ticketID"))
	if err != nil {
		shared.WriteError(w, err)
		return id.TicketID{}, false
	}
	return ticketID, true
}
