package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/platinummonkey/parley/pkg/audit"
	"github.com/platinummonkey/parley/pkg/auth"
	"github.com/platinummonkey/parley/pkg/invites"
	"github.com/platinummonkey/parley/pkg/observability"
	"github.com/platinummonkey/parley/pkg/rbac"
	"github.com/platinummonkey/parley/pkg/sessions"
	"github.com/platinummonkey/parley/pkg/users"
	"github.com/prometheus/client_golang/prometheus"
)

// Dependencies are the collaborators a Service is built from. Audit,
// AuditSearch, Metrics and Logger are optional.
type Dependencies struct {
	DB          *sql.DB
	Users       *users.Store
	Invites     *invites.Ledger
	Sessions    *sessions.Manager
	Resolver    *rbac.Resolver
	Audit       audit.Logger
	AuditSearch AuditSearcher
	Metrics     *observability.Metrics
	Logger      *observability.Logger
}

// AuditSearcher reads back the audit trail
type AuditSearcher interface {
	Search(ctx context.Context, filter audit.SearchFilter) ([]*audit.Event, error)
}

// Service implements the access-control operations
type Service struct {
	db          *sql.DB
	users       *users.Store
	invites     *invites.Ledger
	sessions    *sessions.Manager
	resolver    *rbac.Resolver
	audit       audit.Logger
	auditSearch AuditSearcher
	metrics     *observability.Metrics
	logger      *observability.Logger
}

// NewService creates a Service
func NewService(deps Dependencies) (*Service, error) {
	switch {
	case deps.DB == nil:
		return nil, fmt.Errorf("database is required")
	case deps.Users == nil:
		return nil, fmt.Errorf("user store is required")
	case deps.Invites == nil:
		return nil, fmt.Errorf("invite ledger is required")
	case deps.Sessions == nil:
		return nil, fmt.Errorf("session manager is required")
	case deps.Resolver == nil:
		return nil, fmt.Errorf("permission resolver is required")
	}

	s := &Service{
		db:          deps.DB,
		users:       deps.Users,
		invites:     deps.Invites,
		sessions:    deps.Sessions,
		resolver:    deps.Resolver,
		audit:       deps.Audit,
		auditSearch: deps.AuditSearch,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
	}
	if s.audit == nil {
		s.audit = audit.NopLogger{}
	}
	if s.metrics == nil {
		// Private registry; nothing scrapes it
		s.metrics = observability.NewMetrics(prometheus.NewRegistry())
	}
	if s.logger == nil {
		s.logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return s, nil
}

// Resolver returns the permission resolver
func (s *Service) Resolver() *rbac.Resolver {
	return s.resolver
}

// Sessions returns the session manager
func (s *Service) Sessions() *sessions.Manager {
	return s.sessions
}

// record writes event to the audit trail, logging rather than returning failures
func (s *Service) record(ctx context.Context, event *audit.Event) {
	if err := s.audit.Log(ctx, event); err != nil {
		s.log(ctx).
			WithError(err).
			WithField("event_type", string(event.EventType)).
			Error("Failed to write audit event")
	}
}

func (s *Service) log(ctx context.Context) *observability.Logger {
	return observability.UpdateLoggerWithTraceContext(ctx, observability.FromContextOr(ctx, s.logger))
}

var outcomes = []error{
	auth.ErrAuthFailure,
	auth.ErrUnauthenticated,
	auth.ErrPermissionDenied,
	auth.ErrConflict,
	auth.ErrNotFound,
	auth.ErrInvalidInvite,
	auth.ErrInvalidInput,
}

// asStorageError classifies anything that is neither a domain outcome nor
// already a storage error (transaction begin or commit failures) as a
// storage error
func asStorageError(op string, err error) error {
	if err == nil || auth.IsStorageError(err) {
		return err
	}
	for _, outcome := range outcomes {
		if errors.Is(err, outcome) {
			return err
		}
	}
	return auth.NewStorageError(op, err)
}
