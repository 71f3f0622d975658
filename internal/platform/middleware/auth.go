package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	id "stagepass/pkg/domain"
	"stagepass/pkg/requestcontext"
)

// JWTValidator defines the interface for validating access tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator.
type JWTClaims struct {
	UserID string
}

// RequireAuth rejects requests without a valid bearer token and injects the
// authenticated user ID into the request context.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			userID, err := id.ParseUserID(claims.UserID)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - malformed subject",
					"error", err,
					"request_id", requestID,
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithUserID(ctx, userID)))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
