package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/platinummonkey/parley/pkg/auth"
)

// DefaultTTL is the lifetime of a session from login
const DefaultTTL = 24 * time.Hour

// CredentialVerifier checks a login attempt
type CredentialVerifier interface {
	Verify(ctx context.Context, identifier, password string) (*auth.User, error)
}

// UserLookup fetches the current state of a user
type UserLookup interface {
	ByID(ctx context.Context, id int64) (*auth.User, error)
}

// Manager implements login, current-user resolution and logout
type Manager struct {
	store   Store
	creds   CredentialVerifier
	users   UserLookup
	handles *auth.TokenGenerator
	ttl     time.Duration
	now     func() time.Time
}

// Option configures a Manager
type Option func(*Manager)

// WithTTL sets the session lifetime
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a session manager
func NewManager(store Store, creds CredentialVerifier, users UserLookup, opts ...Option) *Manager {
	m := &Manager{
		store:   store,
		creds:   creds,
		users:   users,
		handles: auth.NewSessionHandleGenerator(),
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// TTL returns the session lifetime
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Login verifies credentials and mints a new session handle. The returned
// Session is the record held by the store. Credential failures are always
// auth.ErrAuthFailure.
func (m *Manager) Login(ctx context.Context, identifier, password string) (handle string, session Session, user *auth.User, err error) {
	user, err = m.creds.Verify(ctx, identifier, password)
	if err != nil {
		return "", Session{}, nil, err
	}

	handle, err = m.handles.Generate()
	if err != nil {
		return "", Session{}, nil, err
	}

	now := m.now()
	session = Session{
		UserID:    user.ID,
		Role:      user.Role,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.store.Put(ctx, handle, session); err != nil {
		return "", Session{}, nil, auth.NewStorageError("create session", err)
	}

	return handle, session, user, nil
}

// ResolveCurrentUser returns the live user bound to handle. A missing or
// expired handle, a deleted user and an inactive user all yield
// auth.ErrUnauthenticated; the last two also drop the session.
func (m *Manager) ResolveCurrentUser(ctx context.Context, handle string) (*auth.User, error) {
	if !m.handles.ValidFormat(handle) {
		return nil, auth.ErrUnauthenticated
	}

	s, err := m.store.Get(ctx, handle)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, auth.ErrUnauthenticated
	}
	if err != nil {
		return nil, auth.NewStorageError("load session", err)
	}

	user, err := m.users.ByID(ctx, s.UserID)
	if errors.Is(err, auth.ErrNotFound) {
		return nil, m.invalidate(ctx, handle)
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive() {
		return nil, m.invalidate(ctx, handle)
	}

	return user, nil
}

func (m *Manager) invalidate(ctx context.Context, handle string) error {
	if err := m.store.Delete(ctx, handle); err != nil {
		return auth.NewStorageError("drop session", err)
	}
	return auth.ErrUnauthenticated
}

// Logout removes the binding for handle. Unknown and repeated handles succeed.
func (m *Manager) Logout(ctx context.Context, handle string) error {
	if !m.handles.ValidFormat(handle) {
		return nil
	}
	if err := m.store.Delete(ctx, handle); err != nil {
		return auth.NewStorageError("delete session", err)
	}
	return nil
}
