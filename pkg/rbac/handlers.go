package rbac

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/platinummonkey/parley/pkg/auth"
	"github.com/platinummonkey/parley/pkg/httputil"
)

// Handlers exposes the role catalog read-only over HTTP
type Handlers struct {
	resolver *Resolver
}

// NewHandlers creates new role catalog handlers
func NewHandlers(resolver *Resolver) *Handlers {
	return &Handlers{resolver: resolver}
}

// RegisterRoutes registers role catalog routes on an authenticated router
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/roles", h.ListRoles).Methods(http.MethodGet)
	router.HandleFunc("/me/permissions", h.MyPermissions).Methods(http.MethodGet)
}

// roleResponse is a catalog entry with the admin wildcard expanded
type roleResponse struct {
	RoleDefinition
	Wildcard bool `json:"wildcard"`
}

// ListRoles returns the catalog currently in effect, highest rank first
func (h *Handlers) ListRoles(w http.ResponseWriter, r *http.Request) {
	defs := h.resolver.Catalog().Roles()
	out := make([]roleResponse, 0, len(defs))
	for _, def := range defs {
		out = append(out, roleResponse{
			RoleDefinition: def,
			Wildcard:       def.Name == auth.RoleAdmin,
		})
	}
	httputil.WriteSuccess(w, out)
}

// MyPermissions returns the effective permissions of the caller
func (h *Handlers) MyPermissions(w http.ResponseWriter, r *http.Request) {
	authCtx := auth.FromContext(r.Context())
	if authCtx == nil || authCtx.User == nil {
		httputil.WriteDomainError(w, auth.ErrUnauthenticated)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"role":        authCtx.User.Role,
		"rank":        h.resolver.Rank(authCtx.User.Role),
		"permissions": h.resolver.EffectivePermissions(authCtx.User.Role),
	})
}
