package api

import (
	"net/http"
	"time"

	"github.com/platinummonkey/parley/pkg/access"
	"github.com/platinummonkey/parley/pkg/auth"
	"github.com/platinummonkey/parley/pkg/httputil"
	"github.com/platinummonkey/parley/pkg/middleware"
)

type loginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type loginResponse struct {
	User         *auth.User `json:"user"`
	SessionToken string     `json:"session_token"`
	ExpiresAt    time.Time  `json:"expires_at"`
}

// login handles POST /auth/login
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	result, err := s.service.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}

	http.SetCookie(w, s.sessionCookie(result.Handle, result.ExpiresAt))
	httputil.WriteSuccess(w, loginResponse{
		User:         result.User,
		SessionToken: result.Handle,
		ExpiresAt:    result.ExpiresAt,
	})
}

// logout handles POST /auth/logout. It succeeds whether or not the
// session still exists.
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if handle := middleware.SessionHandle(r, s.opts.CookieName); handle != "" {
		if err := s.service.Logout(r.Context(), handle); err != nil {
			writeError(w, r, err)
			return
		}
	}

	http.SetCookie(w, s.expiredCookie())
	httputil.WriteNoContent(w)
}

// register handles POST /auth/register
func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req access.RegisterParams
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user, err := s.service.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	httputil.WriteCreated(w, user)
}

// me handles GET /auth/me
func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	user := actor(r)
	httputil.WriteSuccess(w, map[string]interface{}{
		"user":        user,
		"permissions": s.service.EffectivePermissions(user),
	})
}

func (s *Server) sessionCookie(handle string, expiresAt time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    handle,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *Server) expiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
