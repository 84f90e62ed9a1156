package rbac

import (
	"fmt"
	"sort"

	"github.com/platinummonkey/parley/pkg/auth"
)

// Catalog is an immutable, validated role table. Build one with NewCatalog
// and swap it into a Resolver; never mutate a published catalog.
type Catalog struct {
	roles map[auth.Role]RoleDefinition
	perms map[auth.Role]map[auth.Permission]struct{}
}

// NewCatalog validates defs and builds a catalog. Every known role must be
// defined exactly once, only vocabulary permissions are accepted, and admin
// must hold the strictly highest rank.
func NewCatalog(defs []RoleDefinition) (*Catalog, error) {
	c := &Catalog{
		roles: make(map[auth.Role]RoleDefinition, len(defs)),
		perms: make(map[auth.Role]map[auth.Permission]struct{}, len(defs)),
	}

	for _, def := range defs {
		if !def.Name.Valid() {
			return nil, fmt.Errorf("unknown role %q", def.Name)
		}
		if _, dup := c.roles[def.Name]; dup {
			return nil, fmt.Errorf("role %q defined more than once", def.Name)
		}
		if def.Rank < 0 {
			return nil, fmt.Errorf("role %q has negative rank %d", def.Name, def.Rank)
		}

		set := make(map[auth.Permission]struct{}, len(def.Permissions))
		perms := make([]auth.Permission, 0, len(def.Permissions))
		for _, p := range def.Permissions {
			if !p.Valid() {
				return nil, fmt.Errorf("role %q grants unknown permission %q", def.Name, p)
			}
			if _, seen := set[p]; seen {
				continue
			}
			set[p] = struct{}{}
			perms = append(perms, p)
		}
		sort.Slice(perms, func(i, j int) bool { return perms[i] < perms[j] })

		if def.DisplayName == "" {
			def.DisplayName = string(def.Name)
		}
		def.Permissions = perms
		c.roles[def.Name] = def
		c.perms[def.Name] = set
	}

	for _, role := range auth.Roles() {
		if _, ok := c.roles[role]; !ok {
			return nil, fmt.Errorf("role %q is not defined", role)
		}
	}

	adminRank := c.roles[auth.RoleAdmin].Rank
	for name, def := range c.roles {
		if name != auth.RoleAdmin && def.Rank >= adminRank {
			return nil, fmt.Errorf("role %q rank %d must be below admin rank %d", name, def.Rank, adminRank)
		}
	}

	return c, nil
}

// DefaultCatalog returns the catalog built from BuiltInRoles
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(BuiltInRoles())
	if err != nil {
		panic(fmt.Sprintf("built-in role catalog is invalid: %v", err))
	}
	return c
}

// Role returns the definition of role
func (c *Catalog) Role(role auth.Role) (RoleDefinition, bool) {
	def, ok := c.roles[role]
	if !ok {
		return RoleDefinition{}, false
	}
	def.Permissions = append([]auth.Permission(nil), def.Permissions...)
	return def, true
}

// Roles returns every definition ordered by rank, highest first
func (c *Catalog) Roles() []RoleDefinition {
	out := make([]RoleDefinition, 0, len(c.roles))
	for _, role := range auth.Roles() {
		if def, ok := c.Role(role); ok {
			out = append(out, def)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank > out[j].Rank })
	return out
}

// Rank returns the rank of role, or -1 for an unknown role
func (c *Catalog) Rank(role auth.Role) int {
	def, ok := c.roles[role]
	if !ok {
		return -1
	}
	return def.Rank
}

// Grants reports whether role holds p. Admin holds every permission
// regardless of its explicit list; unknown roles hold none.
func (c *Catalog) Grants(role auth.Role, p auth.Permission) bool {
	if role == auth.RoleAdmin {
		return true
	}
	_, ok := c.perms[role][p]
	return ok
}
