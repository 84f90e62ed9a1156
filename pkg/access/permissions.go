package access

import (
	"context"

	"github.com/platinummonkey/parley/pkg/audit"
	"github.com/platinummonkey/parley/pkg/auth"
	"github.com/platinummonkey/parley/pkg/observability"
)

// HasPermission reports whether user holds p. Admins hold everything; a nil
// user or an unknown role holds nothing.
func (s *Service) HasPermission(user *auth.User, p auth.Permission) bool {
	ok := s.resolver.HasPermission(user, p)
	result := observability.ResultDenied
	if ok {
		result = observability.ResultSuccess
	}
	s.metrics.PermissionChecksTotal.WithLabelValues(string(p), result).Inc()
	return ok
}

// Authorize returns nil if user holds p, auth.ErrUnauthenticated for a nil
// user and auth.ErrPermissionDenied otherwise. Denials are audited.
func (s *Service) Authorize(ctx context.Context, user *auth.User, p auth.Permission) error {
	if user == nil {
		return auth.ErrUnauthenticated
	}
	if s.HasPermission(user, p) {
		return nil
	}

	s.record(ctx, audit.NewEvent(ctx, audit.EventTypeAuthzAccessDenied, audit.EventStatusDenied).
		WithActor(user.ID, user.Username).
		WithResource(audit.ResourceTypePermission, string(p)).
		WithMessage("permission denied").
		WithMetadata("role", string(user.Role)))
	s.log(ctx).
		WithField("user_id", user.ID).
		WithField("permission", string(p)).
		Warn("Permission denied")
	return auth.ErrPermissionDenied
}

// EffectivePermissions lists what user may do
func (s *Service) EffectivePermissions(user *auth.User) []auth.Permission {
	if user == nil {
		return []auth.Permission{}
	}
	return s.resolver.EffectivePermissions(user.Role)
}
