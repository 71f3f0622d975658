package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagepass/internal/auth/store"
	"stagepass/internal/jwtauth"
	dErrors "stagepass/pkg/domain-errors"
	"stagepass/pkg/requestcontext"
)

func newAuthService() *AuthService {
	jwt := jwtauth.NewJWTService("test-signing-key", "test-issuer", "test-audience")
	return NewAuthService(store.NewInMemory(), jwt, nil, time.Hour, nil)
}

func registerParams() RegisterParams {
	return RegisterParams{
		Name:       "Lin Hsiao-Mei",
		Email:      "fan@example.com",
		NationalID: "A123456789",
		Password:   "correct horse battery",
	}
}

func TestRegister(t *testing.T) {
	t.Run("creates an account", func(t *testing.T) {
		svc := newAuthService()

		user, err := svc.Register(context.Background(), registerParams())
		require.NoError(t, err)
		assert.Equal(t, "Lin Hsiao-Mei", user.Name)
		assert.Equal(t, "fan@example.com", user.Email)
		assert.Equal(t, "A123456789", user.NationalID)
		assert.NotEmpty(t, user.PasswordHash)
		assert.NotContains(t, string(user.PasswordHash), "correct horse")
	})

	t.Run("rejects a duplicate email regardless of case", func(t *testing.T) {
		svc := newAuthService()
		_, err := svc.Register(context.Background(), registerParams())
		require.NoError(t, err)

		dup := registerParams()
		dup.Email = "FAN@example.com"
		_, err = svc.Register(context.Background(), dup)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("rejects a short password", func(t *testing.T) {
		svc := newAuthService()

		params := registerParams()
		params.Password = "short"
		_, err := svc.Register(context.Background(), params)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects a missing national id", func(t *testing.T) {
		svc := newAuthService()

		params := registerParams()
		params.NationalID = "  "
		_, err := svc.Register(context.Background(), params)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestLogin(t *testing.T) {
	t.Run("issues a token for valid credentials", func(t *testing.T) {
		svc := newAuthService()
		registered, err := svc.Register(context.Background(), registerParams())
		require.NoError(t, err)

		ctx := requestcontext.WithClientMetadata(context.Background(),
			"203.0.113.7",
			"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15",
		)
		result, err := svc.Login(ctx, "fan@example.com", "correct horse battery")
		require.NoError(t, err)
		assert.Equal(t, registered.ID, result.User.ID)
		assert.NotEmpty(t, result.AccessToken)
		assert.Equal(t, time.Hour, result.ExpiresIn)
	})

	t.Run("wrong password and unknown email fail identically", func(t *testing.T) {
		svc := newAuthService()
		_, err := svc.Register(context.Background(), registerParams())
		require.NoError(t, err)

		_, badPassword := svc.Login(context.Background(), "fan@example.com", "wrong password!")
		_, badEmail := svc.Login(context.Background(), "ghost@example.com", "correct horse battery")

		require.Error(t, badPassword)
		require.Error(t, badEmail)
		assert.Equal(t, badPassword.Error(), badEmail.Error())
		assert.True(t, dErrors.HasCode(badPassword, dErrors.CodeUnauthorized))
	})

	t.Run("issued token round-trips through validation", func(t *testing.T) {
		jwt := jwtauth.NewJWTService("test-signing-key", "test-issuer", "test-audience")
		svc := NewAuthService(store.NewInMemory(), jwt, nil, time.Hour, nil)

		registered, err := svc.Register(context.Background(), registerParams())
		require.NoError(t, err)

		result, err := svc.Login(context.Background(), "fan@example.com", "correct horse battery")
		require.NoError(t, err)

		extracted, err := jwt.ExtractUserIDFromToken(result.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, registered.ID, extracted)
	})
}
