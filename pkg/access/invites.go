package access

import (
	"context"
	"strconv"
	"time"

	"github.com/platinummonkey/parley/pkg/audit"
	"github.com/platinummonkey/parley/pkg/auth"
	"github.com/platinummonkey/parley/pkg/invites"
	"github.com/platinummonkey/parley/pkg/observability"
	"go.opentelemetry.io/otel/attribute"
)

// InviteParams describes an invite requested by an issuer
type InviteParams struct {
	Email    string    `json:"email,omitempty"`
	Phone    string    `json:"phone,omitempty"`
	Role     auth.Role `json:"role,omitempty"`
	TTLHours int       `json:"ttl_hours,omitempty"`
}

// InvitePreview is what an unauthenticated registrant may learn about a code
type InvitePreview struct {
	Role      auth.Role `json:"role"`
	Email     string    `json:"email,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CreateInvite issues an invite on behalf of creator, who must hold
// create_invites and may not grant a role ranked above their own
func (s *Service) CreateInvite(ctx context.Context, creator *auth.User, params InviteParams) (inv *invites.Invite, err error) {
	ctx, span := observability.StartSpan(ctx, "access.CreateInvite")
	defer func() { observability.EndSpan(span, err) }()

	if err := s.Authorize(ctx, creator, auth.PermissionCreateInvites); err != nil {
		return nil, err
	}

	role := params.Role
	if role == "" {
		role = auth.RoleMember
	}
	if role.Valid() && !s.resolver.CanAssign(creator.Role, role) {
		s.record(ctx, audit.NewEvent(ctx, audit.EventTypeAuthzAccessDenied, audit.EventStatusDenied).
			WithActor(creator.ID, creator.Username).
			WithResource(audit.ResourceTypeRole, string(role)).
			WithMessage("invite role outranks issuer"))
		return nil, auth.ErrPermissionDenied
	}

	inv, err = s.invites.Issue(ctx, invites.IssueParams{
		CreatorID: creator.ID,
		Email:     params.Email,
		Phone:     params.Phone,
		Role:      role,
		TTLHours:  params.TTLHours,
	})
	if err != nil {
		return nil, err
	}
	inv.CreatedByUsername = creator.Username

	span.SetAttributes(attribute.String("invite.role", string(inv.Role)))
	s.metrics.InvitesIssuedTotal.WithLabelValues(string(inv.Role)).Inc()
	s.record(ctx, audit.NewEvent(ctx, audit.EventTypeInviteIssued, audit.EventStatusSuccess).
		WithActor(creator.ID, creator.Username).
		WithResource(audit.ResourceTypeInvite, strconv.FormatInt(inv.ID, 10)).
		WithMessage("invite issued").
		WithMetadata("role", string(inv.Role)).
		WithMetadata("expires_at", inv.ExpiresAt))
	s.log(ctx).
		WithField("invite", auth.TokenPrefix(inv.Code)).
		WithField("role", string(inv.Role)).
		Info("Invite issued")

	return inv, nil
}

// ValidateInvite checks code for an issuer and reports the specific reason
// when it is unusable. It requires create_invites.
func (s *Service) ValidateInvite(ctx context.Context, actor *auth.User, code string) (inv *invites.Invite, err error) {
	ctx, span := observability.StartSpan(ctx, "access.ValidateInvite")
	defer func() { observability.EndSpan(span, err) }()

	if err := s.Authorize(ctx, actor, auth.PermissionCreateInvites); err != nil {
		return nil, err
	}
	return s.invites.Validate(ctx, code)
}

// PreviewInvite checks code for a prospective registrant. Every failure is
// the generic auth.ErrInvalidInvite so the endpoint is no oracle.
func (s *Service) PreviewInvite(ctx context.Context, code string) (preview *InvitePreview, err error) {
	ctx, span := observability.StartSpan(ctx, "access.PreviewInvite")
	defer func() { observability.EndSpan(span, err) }()

	inv, err := s.invites.Validate(ctx, code)
	if err != nil {
		return nil, hideInviteReason(err)
	}
	return &InvitePreview{
		Role:      inv.Role,
		Email:     inv.Email,
		ExpiresAt: inv.ExpiresAt,
	}, nil
}

// ListInvites returns every invite, newest first. Requires create_invites.
func (s *Service) ListInvites(ctx context.Context, actor *auth.User) (list []*invites.Invite, err error) {
	ctx, span := observability.StartSpan(ctx, "access.ListInvites")
	defer func() { observability.EndSpan(span, err) }()

	if err := s.Authorize(ctx, actor, auth.PermissionCreateInvites); err != nil {
		return nil, err
	}
	return s.invites.List(ctx)
}

// hideInviteReason collapses any invite error into ErrInvalidInvite and lets
// other errors through
func hideInviteReason(err error) error {
	if auth.InviteReasonOf(err) != "" {
		return auth.ErrInvalidInvite
	}
	return err
}
