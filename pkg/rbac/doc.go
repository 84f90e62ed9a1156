// Package rbac is the role catalog and permission resolver.
//
// # Roles
//
// Roles form a closed set (admin, moderator, member). Each carries a rank
// and an explicit permission list:
//
//	admin      100  every permission (wildcard, independent of the list)
//	moderator   70  delete_messages, create_invites
//	member      30  none
//
// The wildcard lives in Catalog.Grants, so an edited catalog can never
// lock admins out. Unknown roles resolve to no permissions.
//
// # Sources
//
// BuiltInRoles is the baseline. A YAML file (LoadFile, FileSource with
// fsnotify hot reload) or the roles/role_permissions tables (Store) can
// replace it at runtime:
//
//	resolver := rbac.NewResolver(nil)
//	src := rbac.NewFileSource("/etc/parley/roles.yaml", resolver, logger)
//	if err := src.Load(); err != nil { ... }
//	go src.Watch(ctx)
//
// Every replacement is validated by NewCatalog first; a rejected catalog
// leaves the previous one in effect.
//
// # Rank rules
//
// CanAssign and CanManage stop an actor from granting a role above their
// own or editing a user who outranks them.
//
// # HTTP
//
// Handlers exposes the live catalog to authenticated callers:
//
//	rbac.NewHandlers(resolver).RegisterRoutes(authed)
package rbac
