// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values. Middleware sets them; services and workers read them
// without importing net/http.
//
// Usage in services (read values):
//
//	userID := requestcontext.UserID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithUserID(ctx, userID)
package requestcontext

import (
	"context"
	"time"

	id "stagepass/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	userIDKey      struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
)

// Exported context keys for tests that need raw context.WithValue.
var (
	ContextKeyUserID      = userIDKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
	ContextKeyClientIP    = clientIPKey{}
	ContextKeyUserAgent   = userAgentKey{}
)

// UserID retrieves the authenticated user ID from the context.
// Returns the zero value (nil UUID) if not set.
func UserID(ctx context.Context) id.UserID {
	if userID, ok := ctx.Value(ContextKeyUserID).(id.UserID); ok {
		return userID
	}
	return id.UserID{}
}

// WithUserID injects a user ID into the context.
func WithUserID(ctx context.Context, userID id.UserID) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

// UserAgent retrieves the User-Agent header value from the context.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		return ua
	}
	return ""
}

// WithClientMetadata injects client IP and User-Agent into a context.
// Useful for service unit tests that skip the HTTP middleware chain.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyClientIP, clientIP)
	ctx = context.WithValue(ctx, ContextKeyUserAgent, userAgent)
	return ctx
}

// Now retrieves the request-scoped time from context. Falls back to
// time.Now() for non-HTTP contexts (workers, tests that don't care).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context so a whole request or test
// observes one consistent clock reading.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
