// Package handler exposes account registration, login, and the current-user
// endpoint.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"stagepass/internal/auth/models"
	"stagepass/internal/auth/service"
	"stagepass/internal/transport/http/shared"
	id "stagepass/pkg/domain"
	dErrors "stagepass/pkg/domain-errors"
	"stagepass/pkg/requestcontext"
)

// Service defines the account operations the handler needs.
type Service interface {
	Register(ctx context.Context, params service.RegisterParams) (*models.User, error)
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	GetUser(ctx context.Context, userID id.UserID) (*models.User, error)
}

// Handler wires auth endpoints to the auth service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an auth handler.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterPublic mounts the unauthenticated endpoints.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/auth/register", h.HandleRegister)
	r.Post("/auth/login", h.HandleLogin)
}

// RegisterProtected mounts the endpoints behind RequireAuth.
func (h *Handler) RegisterProtected(r chi.Router) {
	r.Get("/me", h.HandleMe)
}

// HandleRegister handles POST /auth/register.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := shared.DecodeAndPrepare[RegisterRequest](w, r, h.logger, requestID)
	if !ok {
		return
	}

	user, err := h.service.Register(ctx, service.RegisterParams{
		Name:       req.Name,
		Email:      req.Email,
		NationalID: req.NationalID,
		Password:   req.Password,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "registration rejected",
			"request_id", requestID,
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusCreated, user)
}

// HandleLogin handles POST /auth/login.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := shared.DecodeAndPrepare[LoginRequest](w, r, h.logger, requestID)
	if !ok {
		return
	}

	result, err := h.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.logger.WarnContext(ctx, "login rejected",
			"request_id", requestID,
			"error", err,
		)
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, LoginResponse{
		AccessToken: result.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(result.ExpiresIn.Seconds()),
		User:        result.User,
	})
}

// HandleMe handles GET /me.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := requestcontext.UserID(ctx)
	if userID.IsNil() {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}

	user, err := h.service.GetUser(ctx, userID)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, user)
}
