package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"stagepass/pkg/requestcontext"
)

// RequireAdminToken guards operator routes (draw trigger, event management)
// behind a shared secret header.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("X-Admin-Token")
			// Constant-time comparison to prevent timing attacks.
			if subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", requestcontext.RequestID(ctx),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"forbidden","message":"admin token required"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
