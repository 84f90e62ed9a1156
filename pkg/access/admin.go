package access

import (
	"context"
	"strconv"

	"github.com/platinummonkey/parley/pkg/audit"
	"github.com/platinummonkey/parley/pkg/auth"
	"github.com/platinummonkey/parley/pkg/observability"
	"go.opentelemetry.io/otel/attribute"
)

// ListUsers returns every account, newest first, without password hashes.
// Requires manage_users.
func (s *Service) ListUsers(ctx context.Context, actor *auth.User) (list []*auth.User, err error) {
	ctx, span := observability.StartSpan(ctx, "access.ListUsers")
	defer func() { observability.EndSpan(span, err) }()

	if err := s.Authorize(ctx, actor, auth.PermissionManageUsers); err != nil {
		return nil, err
	}
	return s.users.List(ctx)
}

// UpdateUserRole sets the role of user id. The actor needs manage_users, may
// not touch a user who outranks them, may not grant a role above their own
// and may not change their own role.
func (s *Service) UpdateUserRole(ctx context.Context, actor *auth.User, id int64, role auth.Role) (err error) {
	ctx, span := observability.StartSpan(ctx, "access.UpdateUserRole",
		attribute.Int64("target.id", id), attribute.String("target.role", string(role)))
	defer func() { observability.EndSpan(span, err) }()

	if err := s.Authorize(ctx, actor, auth.PermissionManageUsers); err != nil {
		return err
	}
	if !role.Valid() {
		return auth.InvalidInputf("unknown role %q", role)
	}
	if actor.ID == id {
		return auth.InvalidInputf("cannot change your own role")
	}

	target, err := s.users.ByID(ctx, id)
	if err != nil {
		return err
	}
	if !s.resolver.CanManage(actor.Role, target.Role) || !s.resolver.CanAssign(actor.Role, role) {
		s.record(ctx, audit.NewEvent(ctx, audit.EventTypeAdminRoleChange, audit.EventStatusDenied).
			WithActor(actor.ID, actor.Username).
			WithTarget(id).
			WithResource(audit.ResourceTypeUser, strconv.FormatInt(id, 10)).
			WithMessage("role change outranks actor").
			WithMetadata("to", string(role)))
		return auth.ErrPermissionDenied
	}

	if err := s.users.UpdateRole(ctx, id, role); err != nil {
		return err
	}

	s.record(ctx, audit.NewEvent(ctx, audit.EventTypeAdminRoleChange, audit.EventStatusSuccess).
		WithActor(actor.ID, actor.Username).
		WithTarget(id).
		WithResource(audit.ResourceTypeUser, strconv.FormatInt(id, 10)).
		WithMessage("role changed").
		WithMetadata("from", string(target.Role)).
		WithMetadata("to", string(role)))
	s.log(ctx).
		WithField("target_user_id", id).
		WithField("role", string(role)).
		Info("User role updated")
	return nil
}

// UpdateUserStatus sets the status of user id under the same rules as
// UpdateUserRole. Existing sessions of a deactivated user end on their
// next use.
func (s *Service) UpdateUserStatus(ctx context.Context, actor *auth.User, id int64, status auth.Status) (err error) {
	ctx, span := observability.StartSpan(ctx, "access.UpdateUserStatus",
		attribute.Int64("target.id", id), attribute.String("target.status", string(status)))
	defer func() { observability.EndSpan(span, err) }()

	if err := s.Authorize(ctx, actor, auth.PermissionManageUsers); err != nil {
		return err
	}
	if !status.Valid() {
		return auth.InvalidInputf("unknown status %q", status)
	}
	if actor.ID == id {
		return auth.InvalidInputf("cannot change your own status")
	}

	target, err := s.users.ByID(ctx, id)
	if err != nil {
		return err
	}
	if !s.resolver.CanManage(actor.Role, target.Role) {
		s.record(ctx, audit.NewEvent(ctx, audit.EventTypeAdminStatusChange, audit.EventStatusDenied).
			WithActor(actor.ID, actor.Username).
			WithTarget(id).
			WithResource(audit.ResourceTypeUser, strconv.FormatInt(id, 10)).
			WithMessage("status change outranks actor").
			WithMetadata("to", string(status)))
		return auth.ErrPermissionDenied
	}

	if err := s.users.UpdateStatus(ctx, id, status); err != nil {
		return err
	}

	s.record(ctx, audit.NewEvent(ctx, audit.EventTypeAdminStatusChange, audit.EventStatusSuccess).
		WithActor(actor.ID, actor.Username).
		WithTarget(id).
		WithResource(audit.ResourceTypeUser, strconv.FormatInt(id, 10)).
		WithMessage("status changed").
		WithMetadata("from", string(target.Status)).
		WithMetadata("to", string(status)))
	s.log(ctx).
		WithField("target_user_id", id).
		WithField("status", string(status)).
		Info("User status updated")
	return nil
}

// SearchAudit reads the audit trail. Requires manage_settings and a
// searchable audit sink.
func (s *Service) SearchAudit(ctx context.Context, actor *auth.User, filter audit.SearchFilter) (events []*audit.Event, err error) {
	ctx, span := observability.StartSpan(ctx, "access.SearchAudit")
	defer func() { observability.EndSpan(span, err) }()

	if err := s.Authorize(ctx, actor, auth.PermissionManageSettings); err != nil {
		return nil, err
	}
	if s.auditSearch == nil {
		return nil, auth.ErrNotFound
	}
	events, err = s.auditSearch.Search(ctx, filter)
	if err != nil {
		return nil, auth.NewStorageError("search audit", err)
	}
	return events, nil
}
