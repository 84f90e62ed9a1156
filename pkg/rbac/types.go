package rbac

import "github.com/platinummonkey/parley/pkg/auth"

// RoleDefinition is one row of the role catalog
type RoleDefinition struct {
	Name        auth.Role         `json:"name" yaml:"name"`
	DisplayName string            `json:"display_name" yaml:"display_name"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Rank        int               `json:"rank" yaml:"rank"`
	Permissions []auth.Permission `json:"permissions" yaml:"permissions"`
}

// BuiltInRoles returns the baseline catalog
func BuiltInRoles() []RoleDefinition {
	return []RoleDefinition{
		{
			Name:        auth.RoleAdmin,
			DisplayName: "Administrator",
			Description: "Full access to all features",
			Rank:        100,
			Permissions: auth.Permissions(),
		},
		{
			Name:        auth.RoleModerator,
			DisplayName: "Moderator",
			Description: "Can moderate messages and invite new members",
			Rank:        70,
			Permissions: []auth.Permission{
				auth.PermissionDeleteMessages,
				auth.PermissionCreateInvites,
			},
		},
		{
			Name:        auth.RoleMember,
			DisplayName: "Member",
			Description: "Regular participant",
			Rank:        30,
			Permissions: []auth.Permission{},
		},
	}
}
