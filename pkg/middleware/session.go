package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/platinummonkey/parley/pkg/auth"
	"github.com/platinummonkey/parley/pkg/httputil"
	"github.com/platinummonkey/parley/pkg/observability"
)

// SessionResolver turns a session handle into the current user
type SessionResolver interface {
	CurrentUser(ctx context.Context, handle string) (*auth.User, error)
}

// SessionMiddleware resolves the caller's session on every request
type SessionMiddleware struct {
	resolver   SessionResolver
	cookieName string
	optional   bool // If true, allow requests without a valid session
}

// NewSessionMiddleware creates a new session middleware
func NewSessionMiddleware(resolver SessionResolver, cookieName string, optional bool) *SessionMiddleware {
	return &SessionMiddleware{
		resolver:   resolver,
		cookieName: cookieName,
		optional:   optional,
	}
}

// Handler wraps an HTTP handler with session resolution
func (m *SessionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handle := SessionHandle(r, m.cookieName)
		if handle == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteDomainError(w, auth.ErrUnauthenticated)
			return
		}

		user, err := m.resolver.CurrentUser(r.Context(), handle)
		if err != nil {
			if errors.Is(err, auth.ErrUnauthenticated) && m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteDomainError(w, err)
			return
		}

		ctx := auth.NewContext(r.Context(), &auth.AuthContext{User: user, SessionHandle: handle})
		ctx = observability.WithUserID(ctx, user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionHandle extracts the session handle from the session cookie or,
// failing that, an "Authorization: Bearer" header
func SessionHandle(r *http.Request, cookieName string) string {
	if cookieName != "" {
		if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
			return c.Value
		}
	}

	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// RequireAuth rejects requests that carry no authenticated user. Use it
// behind an optional SessionMiddleware.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if authCtx := auth.FromContext(r.Context()); authCtx == nil || authCtx.User == nil {
			httputil.WriteDomainError(w, auth.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}
