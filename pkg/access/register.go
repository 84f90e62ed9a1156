package access

import (
	"context"
	"errors"
	"strconv"

	"github.com/platinummonkey/parley/pkg/audit"
	"github.com/platinummonkey/parley/pkg/auth"
	"github.com/platinummonkey/parley/pkg/invites"
	"github.com/platinummonkey/parley/pkg/observability"
	"github.com/platinummonkey/parley/pkg/storage"
	"github.com/platinummonkey/parley/pkg/users"
	"go.opentelemetry.io/otel/attribute"
)

// RegisterParams is a registration request
type RegisterParams struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
	Password   string `json:"password"`
	InviteCode string `json:"invite_code"`
}

// Register creates an account from an invite. Validation, user creation and
// redemption share one transaction, so at most one registration consumes a
// given code and a lost race leaves no user behind.
func (s *Service) Register(ctx context.Context, params RegisterParams) (user *auth.User, err error) {
	ctx, span := observability.StartSpan(ctx, "access.Register")
	defer func() { observability.EndSpan(span, err) }()

	// Malformed input is rejected before the invite is looked at
	if _, err := (users.NewUser{
		Username: params.Username,
		Email:    params.Email,
		Phone:    params.Phone,
		Password: params.Password,
	}).Validate(); err != nil {
		s.metrics.RegistrationsTotal.WithLabelValues(observability.ResultFailure).Inc()
		return nil, err
	}

	var inv *invites.Invite
	err = storage.WithTx(ctx, s.db, nil, func(ctx context.Context, tx storage.DBTX) error {
		ledger := s.invites.WithTx(tx)

		pending, err := ledger.Validate(ctx, params.InviteCode)
		if err != nil {
			return err
		}

		created, err := s.users.WithTx(tx).Create(ctx, users.NewUser{
			Username: params.Username,
			Email:    params.Email,
			Phone:    params.Phone,
			Password: params.Password,
			Role:     pending.Role,
		})
		if err != nil {
			return err
		}

		redeemed, err := ledger.Redeem(ctx, params.InviteCode, created.ID)
		if err != nil {
			return err
		}

		user = created
		inv = redeemed
		return nil
	})
	if err != nil {
		err = asStorageError("register", err)
		s.registrationFailed(ctx, params, err)
		return nil, hideInviteReason(err)
	}

	span.SetAttributes(attribute.Int64("user.id", user.ID), attribute.String("user.role", string(user.Role)))
	s.metrics.RegistrationsTotal.WithLabelValues(observability.ResultSuccess).Inc()
	s.metrics.InviteRedemptionsTotal.WithLabelValues(observability.ResultSuccess).Inc()

	s.record(ctx, audit.NewEvent(ctx, audit.EventTypeAuthRegister, audit.EventStatusSuccess).
		WithActor(user.ID, user.Username).
		WithResource(audit.ResourceTypeUser, strconv.FormatInt(user.ID, 10)).
		WithMessage("account registered").
		WithMetadata("role", string(user.Role)))
	s.record(ctx, audit.NewEvent(ctx, audit.EventTypeInviteRedeemed, audit.EventStatusSuccess).
		WithActor(user.ID, user.Username).
		WithTarget(inv.CreatedBy).
		WithResource(audit.ResourceTypeInvite, strconv.FormatInt(inv.ID, 10)).
		WithMessage("invite redeemed"))
	s.log(ctx).
		WithField("user_id", user.ID).
		WithField("invite", auth.TokenPrefix(inv.Code)).
		Info("User registered")

	return user, nil
}

func (s *Service) registrationFailed(ctx context.Context, params RegisterParams, err error) {
	result := observability.ResultFailure
	if auth.IsStorageError(err) {
		result = observability.ResultError
	}
	s.metrics.RegistrationsTotal.WithLabelValues(result).Inc()

	logger := s.log(ctx).WithField("invite", auth.TokenPrefix(params.InviteCode))
	if reason := auth.InviteReasonOf(err); reason != "" {
		s.metrics.InviteRedemptionsTotal.WithLabelValues(string(reason)).Inc()
		s.record(ctx, audit.NewEvent(ctx, audit.EventTypeInviteRedeemed, audit.EventStatusFailure).
			WithResource(audit.ResourceTypeInvite, "").
			WithMessage("invite rejected").
			WithMetadata("reason", string(reason)).
			WithMetadata("code_prefix", auth.TokenPrefix(params.InviteCode)))
		logger.WithField("reason", string(reason)).Info("Registration rejected invite")
		return
	}

	switch {
	case errors.Is(err, auth.ErrConflict), errors.Is(err, auth.ErrInvalidInput):
		logger.WithError(err).Info("Registration rejected")
	default:
		logger.WithError(err).Error("Registration failed")
	}
}
