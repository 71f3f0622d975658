// Package service implements account registration and login. Passwords are
// bcrypt-hashed; sessions are stateless HS256 JWTs issued on login.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"stagepass/internal/auth/device"
	"stagepass/internal/auth/models"
	id "stagepass/pkg/domain"
	dErrors "stagepass/pkg/domain-errors"
	"stagepass/pkg/platform/sentinel"
	"stagepass/pkg/requestcontext"
)

// UserStore is the persistence contract for accounts.
type UserStore interface {
	CreateIfEmailAvailable(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// TokenIssuer mints access tokens for authenticated users.
type TokenIssuer interface {
	GenerateAccessToken(userID id.UserID, expiresIn time.Duration) (string, error)
}

// AuthService handles account lifecycle and login.
type AuthService struct {
	users    UserStore
	tokens   TokenIssuer
	devices  *device.Service
	tokenTTL time.Duration
	logger   *slog.Logger
}

func NewAuthService(users UserStore, tokens TokenIssuer, devices *device.Service, tokenTTL time.Duration, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	if devices == nil {
		devices = device.NewService(false)
	}
	return &AuthService{
		users:    users,
		tokens:   tokens,
		devices:  devices,
		tokenTTL: tokenTTL,
		logger:   logger,
	}
}

// RegisterParams is the input to Register.
type RegisterParams struct {
	Name       string
	Email      string
	NationalID string
	Password   string
}

const minPasswordLength = 8

// Register creates an account with a bcrypt-hashed password.
func (s *AuthService) Register(ctx context.Context, params RegisterParams) (*models.User, error) {
	if len(params.Password) < minPasswordLength {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput,
			"password must be at least %d characters", minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}

	user, err := models.NewUser(
		id.NewUserID(),
		params.Name,
		params.Email,
		params.NationalID,
		hash,
		requestcontext.Now(ctx),
	)
	if err != nil {
		return nil, err
	}

	if err := s.users.CreateIfEmailAvailable(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "an account with this email already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create account")
	}

	s.logger.InfoContext(ctx, "account registered",
		"user_id", user.ID.String(),
	)
	return user, nil
}

// LoginResult carries the issued session.
type LoginResult struct {
	User        *models.User
	AccessToken string
	ExpiresIn   time.Duration
}

// Login verifies credentials and issues an access token. Wrong email and
// wrong password return the same error so accounts cannot be enumerated.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")
	}

	token, err := s.tokens.GenerateAccessToken(user.ID, s.tokenTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}

	userAgent := requestcontext.UserAgent(ctx)
	s.logger.InfoContext(ctx, "login",
		"user_id", user.ID.String(),
		"client_ip", requestcontext.ClientIP(ctx),
		"device", device.ParseUserAgent(userAgent),
		"device_fingerprint", s.devices.ComputeFingerprint(userAgent),
	)

	return &LoginResult{
		User:        user,
		AccessToken: token,
		ExpiresIn:   s.tokenTTL,
	}, nil
}

// GetUser loads one account.
func (s *AuthService) GetUser(ctx context.Context, userID id.UserID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "account not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
	}
	return user, nil
}
