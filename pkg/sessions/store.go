package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/platinummonkey/parley/pkg/auth"
)

// ErrSessionNotFound is returned by a Store for unknown or expired handles
var ErrSessionNotFound = errors.New("session not found")

// Session is the server-side record bound to a handle
type Session struct {
	UserID    int64     `json:"user_id"`
	Role      auth.Role `json:"role"` // role at login time, informational only
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store persists sessions keyed by handle. Implementations must be safe for
// concurrent use and must expire entries on their own.
type Store interface {
	// Put binds handle to s until s.ExpiresAt
	Put(ctx context.Context, handle string, s Session) error

	// Get returns the session for handle, or ErrSessionNotFound
	Get(ctx context.Context, handle string) (*Session, error)

	// Delete removes handle; deleting an unknown handle is not an error
	Delete(ctx context.Context, handle string) error

	// Close releases resources held by the store
	Close() error
}

func storeKey(handle string) string {
	return auth.HashToken(handle)
}
