package access

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/platinummonkey/parley/pkg/audit"
	"github.com/platinummonkey/parley/pkg/auth"
	"github.com/platinummonkey/parley/pkg/observability"
	"go.opentelemetry.io/otel/attribute"
)

// LoginResult is a successful login
type LoginResult struct {
	Handle    string
	User      *auth.User
	ExpiresAt time.Time
}

// Login verifies credentials and opens a session
func (s *Service) Login(ctx context.Context, identifier, password string) (result *LoginResult, err error) {
	ctx, span := observability.StartSpan(ctx, "access.Login")
	defer func() { observability.EndSpan(span, err) }()

	handle, session, user, err := s.sessions.Login(ctx, identifier, password)
	switch {
	case errors.Is(err, auth.ErrAuthFailure):
		s.metrics.LoginAttemptsTotal.WithLabelValues(observability.ResultFailure).Inc()
		s.record(ctx, audit.NewEvent(ctx, audit.EventTypeAuthLoginFailed, audit.EventStatusFailure).
			WithResource(audit.ResourceTypeSession, "").
			WithMessage("login failed").
			WithMetadata("identifier_hash", identifierDigest(identifier)))
		s.log(ctx).Info("Login failed")
		return nil, err
	case err != nil:
		s.metrics.LoginAttemptsTotal.WithLabelValues(observability.ResultError).Inc()
		s.log(ctx).WithError(err).Error("Login could not be completed")
		return nil, err
	}

	span.SetAttributes(attribute.Int64("user.id", user.ID))
	s.metrics.LoginAttemptsTotal.WithLabelValues(observability.ResultSuccess).Inc()
	s.record(ctx, audit.NewEvent(ctx, audit.EventTypeAuthLogin, audit.EventStatusSuccess).
		WithActor(user.ID, user.Username).
		WithResource(audit.ResourceTypeSession, "").
		WithMessage("login succeeded"))
	s.log(ctx).WithField("user_id", user.ID).Info("User logged in")

	return &LoginResult{
		Handle:    handle,
		User:      user,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// identifierDigest correlates failed attempts on one identifier without
// recording what was typed, which is sometimes a password
func identifierDigest(identifier string) string {
	return auth.TokenPrefix(auth.HashToken(strings.TrimSpace(identifier)))
}

// Logout ends the session for handle. Unknown handles succeed.
func (s *Service) Logout(ctx context.Context, handle string) (err error) {
	ctx, span := observability.StartSpan(ctx, "access.Logout")
	defer func() { observability.EndSpan(span, err) }()

	if err := s.sessions.Logout(ctx, handle); err != nil {
		return err
	}

	event := audit.NewEvent(ctx, audit.EventTypeAuthLogout, audit.EventStatusSuccess).
		WithResource(audit.ResourceTypeSession, "").
		WithMessage("logout")
	if authCtx := auth.FromContext(ctx); authCtx != nil && authCtx.User != nil {
		event.WithActor(authCtx.User.ID, authCtx.User.Username)
	}
	s.record(ctx, event)
	return nil
}

// CurrentUser resolves handle to its live, active user
func (s *Service) CurrentUser(ctx context.Context, handle string) (user *auth.User, err error) {
	ctx, span := observability.StartSpan(ctx, "access.CurrentUser")
	defer func() { observability.EndSpan(span, err) }()

	user, err = s.sessions.ResolveCurrentUser(ctx, handle)
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		s.metrics.SessionResolutionsTotal.WithLabelValues(observability.ResultFailure).Inc()
		return nil, err
	case err != nil:
		s.metrics.SessionResolutionsTotal.WithLabelValues(observability.ResultError).Inc()
		return nil, err
	}
	s.metrics.SessionResolutionsTotal.WithLabelValues(observability.ResultSuccess).Inc()
	return user, nil
}
