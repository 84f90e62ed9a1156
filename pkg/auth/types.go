package auth

import "time"

// User represents a registered chat account
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone,omitempty"`
	PasswordHash string     `json:"-"` // Never expose hash
	Role         Role       `json:"role"`
	Status       Status     `json:"status"`
	DisplayName  string     `json:"display_name,omitempty"`
	Avatar       string     `json:"avatar,omitempty"`
	Bio          string     `json:"bio,omitempty"`
	Timezone     string     `json:"timezone,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	LastActiveAt *time.Time `json:"last_active_at,omitempty"`
}

// IsActive reports whether the account may authenticate
func (u *User) IsActive() bool {
	return u != nil && u.Status == StatusActive
}

// Role is the authority tier of a user
type Role string

const (
	RoleAdmin     Role = "admin"     // Everything, regardless of catalog contents
	RoleModerator Role = "moderator" // Message moderation and invites
	RoleMember    Role = "member"    // Default participant
)

// Roles returns every known role, highest authority first
func Roles() []Role {
	return []Role{RoleAdmin, RoleModerator, RoleMember}
}

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleModerator, RoleMember:
		return true
	}
	return false
}

// ParseRole converts a persisted or user-supplied role name
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", InvalidInputf("unknown role %q", s)
	}
	return r, nil
}

// Status is the moderation state of an account
type Status string

const (
	StatusActive     Status = "active"
	StatusBanned     Status = "banned"
	StatusRestricted Status = "restricted"
	StatusMuted      Status = "muted"
)

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusBanned, StatusRestricted, StatusMuted:
		return true
	}
	return false
}

// ParseStatus converts a persisted or user-supplied status name
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", InvalidInputf("unknown status %q", s)
	}
	return st, nil
}

// Permission is a named capability checked before a privileged operation
type Permission string

const (
	PermissionManageUsers    Permission = "manage_users"
	PermissionManageChannels Permission = "manage_channels"
	PermissionManageSettings Permission = "manage_settings"
	PermissionCreateInvites  Permission = "create_invites"
	PermissionDeleteMessages Permission = "delete_messages"
	PermissionBanUsers       Permission = "ban_users"
)

// Permissions returns the full permission vocabulary
func Permissions() []Permission {
	return []Permission{
		PermissionManageUsers,
		PermissionManageChannels,
		PermissionManageSettings,
		PermissionCreateInvites,
		PermissionDeleteMessages,
		PermissionBanUsers,
	}
}

// Valid reports whether p is part of the permission vocabulary
func (p Permission) Valid() bool {
	for _, known := range Permissions() {
		if p == known {
			return true
		}
	}
	return false
}
