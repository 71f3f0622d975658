// Package handler exposes the registration lifecycle over HTTP. All routes
// require an authenticated user; the service scopes every read and write to
// that user.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"stagepass/internal/registration/models"
	"stagepass/internal/registration/service"
	"stagepass/internal/transport/http/shared"
	id "stagepass/pkg/domain"
	dErrors "stagepass/pkg/domain-errors"
	"stagepass/pkg/requestcontext"
)

// Service defines the registration operations the handler needs.
type Service interface {
	Create(ctx context.Context, userID id.UserID, params service.CreateParams) (*models.Registration, error)
	List(ctx context.Context, userID id.UserID, status *models.Status) ([]*models.Registration, error)
	Get(ctx context.Context, userID id.UserID, regID id.RegistrationID) (*models.Registration, error)
	Cancel(ctx context.Context, userID id.UserID, regID id.RegistrationID) (*models.Registration, error)
	Confirm(ctx context.Context, userID id.UserID, regID id.RegistrationID, paymentRef string) (*models.Registration, error)
}

// Handler wires registration endpoints to the registration service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a registration handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts registration endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/registrations", h.HandleCreate)
	r.Get("/registrations", h.HandleList)
	r.Get("/registrations/{registrationID}", h.HandleGet)
	r.Post("/registrations/{registrationID}/cancel", h.HandleCancel)
	r.Post("/registrations/{registrationID}/confirm", h.HandleConfirm)
}

// HandleCreate handles POST /registrations.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}

	req, ok := shared.DecodeAndPrepare[CreateRequest](w, r, h.logger, requestID)
	if !ok {
		return
	}

	reg, err := h.service.Create(ctx, userID, service.CreateParams{
		EventID:      req.ParsedEventID(),
		TicketTypeID: req.ParsedTicketTypeID(),
		Quantity:     req.Quantity,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "registration create failed",
			"request_id", requestID,
			"user_id", userID.String(),
			"event_id", req.EventID,
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "registration created",
		"request_id", requestID,
		"registration_id", reg.ID.String(),
		"event_id", reg.EventID.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	shared.WriteJSON(w, http.StatusCreated, reg)
}

// HandleList handles GET /registrations. The optional ?status= query filters
// to one status; status=won is the storefront's pending-payment cart.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}

	status, err := parseStatusFilter(r.URL.Query().Get("status"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	regs, err := h.service.List(ctx, userID, status)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"registrations": regs})
}

// HandleGet handles GET /registrations/{registrationID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}
	regID, ok := h.pathRegistrationID(w, r)
	if !ok {
		return
	}

	reg, err := h.service.Get(ctx, userID, regID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, reg)
}

// HandleCancel handles POST /registrations/{registrationID}/cancel.
func (h *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}
	regID, ok := h.pathRegistrationID(w, r)
	if !ok {
		return
	}

	reg, err := h.service.Cancel(ctx, userID, regID)
	if err != nil {
		h.logger.WarnContext(ctx, "registration cancel rejected",
			"request_id", requestID,
			"registration_id", regID.String(),
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "registration cancelled",
		"request_id", requestID,
		"registration_id", reg.ID.String(),
	)
	shared.WriteJSON(w, http.StatusOK, reg)
}

// HandleConfirm handles POST /registrations/{registrationID}/confirm.
func (h *Handler) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	userID, ok := h.requireUser(w, ctx)
	if !ok {
		return
	}
	regID, ok := h.pathRegistrationID(w, r)
	if !ok {
		return
	}

	req, ok := shared.DecodeAndPrepare[ConfirmRequest](w, r, h.logger, requestID)
	if !ok {
		return
	}

	reg, err := h.service.Confirm(ctx, userID, regID, req.PaymentRef)
	if err != nil {
		h.logger.WarnContext(ctx, "registration confirm rejected",
			"request_id", requestID,
			"registration_id", regID.String(),
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "registration confirmed",
		"request_id", requestID,
		"registration_id", reg.ID.String(),
		"payment_ref", reg.PaymentRef,
	)
	shared.WriteJSON(w, http.StatusOK, reg)
}

func (h *Handler) requireUser(w http.ResponseWriter, ctx context.Context) (id.UserID, bool) {
	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return id.UserID{}, false
	}
	return userID, true
}

func (h *Handler) pathRegistrationID(w http.ResponseWriter, r *http.Request) (id.RegistrationID, bool) {
	regID, err := id.ParseRegistrationID(chi.URLParam(r, "registrationID"))
	if err != nil {
		shared.WriteError(w, err)
		return id.RegistrationID{}, false
	}
	return regID, true
}
