package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/parley/pkg/access"
	"github.com/platinummonkey/parley/pkg/auth"
	"github.com/platinummonkey/parley/pkg/httputil"
	"github.com/platinummonkey/parley/pkg/middleware"
	"github.com/platinummonkey/parley/pkg/observability"
	"github.com/platinummonkey/parley/pkg/rbac"
)

// DefaultCookieName is the session cookie used when Options.CookieName is empty
const DefaultCookieName = "parley_session"

// Options configures the HTTP adapter
type Options struct {
	CookieName   string
	CookieSecure bool
	// TrustProxy honours X-Forwarded-For and X-Real-IP for the client IP
	TrustProxy bool
	// LoginLimiter throttles login and registration; nil disables it
	LoginLimiter middleware.Limiter

	Metrics *observability.Metrics
	Logger  *observability.Logger
}

// Server is the access-control HTTP API
type Server struct {
	router  *mux.Router
	service *access.Service
	opts    Options
}

// NewServer creates the API server and registers its routes
func NewServer(service *access.Service, opts Options) *Server {
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.Logger == nil {
		opts.Logger = observability.NewLogger(observability.InfoLevel, nil)
	}

	s := &Server{
		router:  mux.NewRouter(),
		service: service,
		opts:    opts,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(
		observability.RecoverMiddleware(s.opts.Logger),
		httputil.RequestIDMiddleware(s.opts.Logger),
		middleware.ClientInfoMiddleware(s.opts.TrustProxy),
		httputil.LoggingMiddleware,
	)
	if s.opts.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.opts.Metrics))
	}
	s.router.Use(httputil.ContentTypeMiddleware)

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.Use(middleware.NewSessionMiddleware(s.service, s.opts.CookieName, true).Handler)

	// Public routes
	v1.Handle("/auth/login", s.limited("login", s.login)).Methods(http.MethodPost)
	v1.Handle("/auth/register", s.limited("register", s.register)).Methods(http.MethodPost)
	v1.HandleFunc("/auth/logout", s.logout).Methods(http.MethodPost)
	v1.HandleFunc("/invites/{code}/preview", s.previewInvite).Methods(http.MethodGet)

	// Authenticated routes
	authed := v1.NewRoute().Subrouter()
	authed.Use(middleware.RequireAuth)
	authed.HandleFunc("/auth/me", s.me).Methods(http.MethodGet)

	authed.HandleFunc("/invites", s.createInvite).Methods(http.MethodPost)
	authed.HandleFunc("/invites", s.listInvites).Methods(http.MethodGet)
	authed.HandleFunc("/invites/{code}", s.validateInvite).Methods(http.MethodGet)

	authed.HandleFunc("/users", s.listUsers).Methods(http.MethodGet)
	authed.HandleFunc("/users/{id}/role", s.updateUserRole).Methods(http.MethodPut)
	authed.HandleFunc("/users/{id}/status", s.updateUserStatus).Methods(http.MethodPut)

	authed.HandleFunc("/audit/events", s.searchAudit).Methods(http.MethodGet)
	authed.HandleFunc("/audit/export", s.exportAudit).Methods(http.MethodGet)

	rbac.NewHandlers(s.service.Resolver()).RegisterRoutes(authed)
}

// limited applies the login rate limiter to h when one is configured
func (s *Server) limited(route string, h http.HandlerFunc) http.Handler {
	if s.opts.LoginLimiter == nil {
		return h
	}
	return middleware.RateLimit(s.opts.LoginLimiter, s.opts.Metrics, route)(h)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router returns the underlying router
func (s *Server) Router() *mux.Router {
	return s.router
}

// actor returns the authenticated user of r, or nil
func actor(r *http.Request) *auth.User {
	if authCtx := auth.FromContext(r.Context()); authCtx != nil {
		return authCtx.User
	}
	return nil
}

// writeError writes err as a domain error and logs server-side failures
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := httputil.DomainErrorResponse(err)
	if status >= http.StatusInternalServerError {
		observability.FromContext(r.Context()).WithError(err).
			WithField("path", r.URL.Path).
			Error("Request failed")
	}
	httputil.WriteErrorResponse(w, status, body)
}
