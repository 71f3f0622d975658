package jwtauth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "stagepass/pkg/domain"
	dErrors "stagepass/pkg/domain-errors"
)

var jwtService = NewJWTService(
	"test-signing-key",
	"test-issuer",
	"test-audience",
)
var userID = id.NewUserID()
var expiresIn = time.Hour

func Test_GenerateAccessToken(t *testing.T) {
	token, err := jwtService.GenerateAccessToken(userID, expiresIn)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.NotNil(t, claims)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.WithinDuration(t, time.Now().Add(expiresIn), claims.ExpiresAt.Time, time.Minute)
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := jwtService.ValidateToken("invalid-token-string")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	token, err := jwtService.GenerateAccessToken(userID, -time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateToken_WrongKey(t *testing.T) {
	other := NewJWTService("different-key", "test-issuer", "test-audience")
	token, err := other.GenerateAccessToken(userID, expiresIn)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ExtractUserIDFromToken(t *testing.T) {
	token, err := jwtService.GenerateAccessToken(userID, expiresIn)
	require.NoError(t, err)

	extracted, err := jwtService.ExtractUserIDFromToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, extracted)
}
