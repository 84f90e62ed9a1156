// Package contextkeys provides centralized context key definitions
//
// All request-scoped values shared between middleware and handlers are
// keyed here. Logging keys (request ID, user ID, logger) live in
// pkg/observability next to the helpers that read them.
package contextkeys

import (
	"context"
	"time"
)

// Key is the type for context keys to prevent collisions
type Key string

const (
	// AuthKey contains *auth.AuthContext
	// Set by: middleware.SessionMiddleware
	// Required by: middleware.RequireAuth, api handlers, rbac.Handlers
	AuthKey Key = "auth_context"

	// ClientIPKey contains the resolved client address string
	// Set by: middleware.ClientInfoMiddleware
	// Used by: rate limiting, audit trail
	ClientIPKey Key = "client_ip"

	// UserAgentKey contains the request User-Agent header
	// Set by: middleware.ClientInfoMiddleware
	// Used by: audit trail
	UserAgentKey Key = "user_agent"

	// RequestStartTimeKey contains request start timestamp
	// Set by: httputil.RequestIDMiddleware
	// Used by: httputil.LoggingMiddleware
	RequestStartTimeKey Key = "request_start_time"
)

// WithAuth adds authentication context to the context
func WithAuth(ctx context.Context, authCtx interface{}) context.Context {
	return context.WithValue(ctx, AuthKey, authCtx)
}

// WithClientIP adds the client address to the context
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ClientIPKey, ip)
}

// GetClientIP retrieves the client address from context
func GetClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ClientIPKey).(string); ok {
		return ip
	}
	return ""
}

// WithUserAgent adds the request User-Agent to the context
func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, UserAgentKey, ua)
}

// GetUserAgent retrieves the request User-Agent from context
func GetUserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(UserAgentKey).(string); ok {
		return ua
	}
	return ""
}

// WithRequestStartTime adds request start time to the context
func WithRequestStartTime(ctx context.Context, start time.Time) context.Context {
	return context.WithValue(ctx, RequestStartTimeKey, start)
}

// GetRequestStartTime retrieves the request start time, or the zero time
func GetRequestStartTime(ctx context.Context) time.Time {
	if start, ok := ctx.Value(RequestStartTimeKey).(time.Time); ok {
		return start
	}
	return time.Time{}
}
