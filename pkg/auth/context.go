package auth

import (
	"context"

	"github.com/platinummonkey/parley/pkg/contextkeys"
)

// AuthContext holds the identity resolved for the current request
type AuthContext struct {
	User          *User
	SessionHandle string
}

// FromContext returns the auth context stored in ctx, or nil
func FromContext(ctx context.Context) *AuthContext {
	authCtx, _ := ctx.Value(contextkeys.AuthKey).(*AuthContext)
	return authCtx
}

// NewContext returns ctx carrying authCtx
func NewContext(ctx context.Context, authCtx *AuthContext) context.Context {
	return contextkeys.WithAuth(ctx, authCtx)
}
