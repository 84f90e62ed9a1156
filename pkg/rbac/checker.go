package rbac

import (
	"sync/atomic"

	"github.com/platinummonkey/parley/pkg/auth"
)

// Checker answers permission questions for users
type Checker interface {
	// HasPermission reports whether user holds p
	HasPermission(user *auth.User, p auth.Permission) bool
}

// Resolver resolves permissions against the current catalog. The catalog
// can be replaced at runtime; readers never observe a partial table.
type Resolver struct {
	catalog atomic.Pointer[Catalog]
}

var _ Checker = (*Resolver)(nil)

// NewResolver creates a resolver over c, or over DefaultCatalog when c is nil
func NewResolver(c *Catalog) *Resolver {
	if c == nil {
		c = DefaultCatalog()
	}
	r := &Resolver{}
	r.catalog.Store(c)
	return r
}

// Catalog returns the catalog currently in effect
func (r *Resolver) Catalog() *Catalog {
	return r.catalog.Load()
}

// Replace atomically installs c. A nil catalog is ignored.
func (r *Resolver) Replace(c *Catalog) {
	if c != nil {
		r.catalog.Store(c)
	}
}

// HasPermission reports whether user holds p. A nil user holds nothing.
func (r *Resolver) HasPermission(user *auth.User, p auth.Permission) bool {
	if user == nil {
		return false
	}
	return r.Catalog().Grants(user.Role, p)
}

// Rank returns the rank of role, or -1 for an unknown role
func (r *Resolver) Rank(role auth.Role) int {
	return r.Catalog().Rank(role)
}

// CanAssign reports whether an actor holding actor may grant target.
// Nobody may grant a role ranked above their own.
func (r *Resolver) CanAssign(actor, target auth.Role) bool {
	c := r.Catalog()
	actorRank := c.Rank(actor)
	targetRank := c.Rank(target)
	return actorRank >= 0 && targetRank >= 0 && targetRank <= actorRank
}

// CanManage reports whether actor may change the role or status of a user
// holding subject. Users who outrank the actor are off limits.
func (r *Resolver) CanManage(actor, subject auth.Role) bool {
	return r.CanAssign(actor, subject)
}

// EffectivePermissions lists what role can do. Admin expands to the full
// vocabulary.
func (r *Resolver) EffectivePermissions(role auth.Role) []auth.Permission {
	if role == auth.RoleAdmin {
		return auth.Permissions()
	}
	def, ok := r.Catalog().Role(role)
	if !ok {
		return []auth.Permission{}
	}
	return def.Permissions
}
