package handler

import (
	"strings"

	"stagepass/internal/auth/models"
	dErrors "stagepass/pkg/domain-errors"
)

// RegisterRequest is the HTTP request body for POST /auth/register.
type RegisterRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	NationalID string `json:"national_id"`
	Password   string `json:"password"`
}

// Validate checks presence; the service owns the real rules.
func (r *RegisterRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "name is required")
	}
	if strings.TrimSpace(r.Email) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "email is required")
	}
	if strings.TrimSpace(r.NationalID) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "national_id is required")
	}
	if r.Password == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "password is required")
	}
	return nil
}

// LoginRequest is the HTTP request body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks presence.
func (r *LoginRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if strings.TrimSpace(r.Email) == "" || r.Password == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "email and password are required")
	}
	return nil
}

// LoginResponse is the HTTP response body for a successful login.
type LoginResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int64        `json:"expires_in"`
	User        *models.User `json:"user"`
}
