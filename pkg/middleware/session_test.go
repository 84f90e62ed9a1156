package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/parley/pkg/auth"
	"github.com/platinummonkey/parley/pkg/observability"
)

type fakeResolver struct {
	users map[string]*auth.User
	err   error
	seen  []string
}

func (f *fakeResolver) CurrentUser(_ context.Context, handle string) (*auth.User, error) {
	f.seen = append(f.seen, handle)
	if f.err != nil {
		return nil, f.err
	}
	if u, ok := f.users[handle]; ok {
		return u, nil
	}
	return nil, auth.ErrUnauthenticated
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{users: map[string]*auth.User{
		"good-handle": {ID: 7, Username: "alice", Role: auth.RoleMember, Status: auth.StatusActive},
	}}
}

func captureUser(got **auth.User, gotID *int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if authCtx := auth.FromContext(r.Context()); authCtx != nil {
			*got = authCtx.User
		}
		*gotID = observability.GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestSessionMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		optional   bool
		setup      func(r *http.Request)
		wantStatus int
		wantUser   bool
	}{
		{
			name:       "cookie",
			setup:      func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "parley_session", Value: "good-handle"}) },
			wantStatus: http.StatusOK,
			wantUser:   true,
		},
		{
			name:       "bearer header",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer good-handle") },
			wantStatus: http.StatusOK,
			wantUser:   true,
		},
		{
			name:       "missing handle",
			setup:      func(r *http.Request) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unknown handle",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer stale") },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "malformed authorization",
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Basic Zm9vOmJhcg==") },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "optional without handle",
			optional:   true,
			setup:      func(r *http.Request) {},
			wantStatus: http.StatusOK,
		},
		{
			name:       "optional with stale handle",
			optional:   true,
			setup:      func(r *http.Request) { r.Header.Set("Authorization", "Bearer stale") },
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var user *auth.User
			var userID int64
			mw := NewSessionMiddleware(newFakeResolver(), "parley_session", tt.optional)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			mw.Handler(captureUser(&user, &userID)).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantUser {
				require.NotNil(t, user)
				assert.Equal(t, "alice", user.Username)
				assert.Equal(t, int64(7), userID)
			} else {
				assert.Nil(t, user)
			}
		})
	}
}

func TestSessionMiddlewareCookieWins(t *testing.T) {
	resolver := newFakeResolver()
	mw := NewSessionMiddleware(resolver, "parley_session", false)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "parley_session", Value: "good-handle"})
	req.Header.Set("Authorization", "Bearer other")
	rec := httptest.NewRecorder()
	mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(rec, req)

	assert.Equal(t, []string{"good-handle"}, resolver.seen)
}

func TestSessionMiddlewareStorageFailure(t *testing.T) {
	resolver := newFakeResolver()
	resolver.err = auth.NewStorageError("resolve session", assert.AnError)
	mw := NewSessionMiddleware(resolver, "parley_session", true)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good-handle")
	rec := httptest.NewRecorder()
	called := false
	mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })).ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}

func TestRequireAuth(t *testing.T) {
	handler := RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.NewContext(req.Context(), &auth.AuthContext{User: &auth.User{ID: 1}}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
