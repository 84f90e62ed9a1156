package invites

import (
	"time"

	"github.com/platinummonkey/parley/pkg/auth"
)

// State is the computed lifecycle position of an invite
type State string

const (
	StateIssued   State = "issued"
	StateRedeemed State = "redeemed"
	StateExpired  State = "expired"
)

// Invite is a persisted invite record
type Invite struct {
	ID                int64      `json:"id"`
	Code              string     `json:"code"`
	CreatedBy         int64      `json:"created_by"`
	CreatedByUsername string     `json:"created_by_username,omitempty"`
	Email             string     `json:"email,omitempty"`
	Phone             string     `json:"phone,omitempty"`
	Role              auth.Role  `json:"role"`
	ExpiresAt         time.Time  `json:"expires_at"`
	UsedAt            *time.Time `json:"used_at,omitempty"`
	UsedBy            *int64     `json:"used_by,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// Redeemed reports whether the redemption marker is set
func (i *Invite) Redeemed() bool {
	return i.UsedAt != nil
}

// Expired reports whether now is at or past the expiry
func (i *Invite) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// State returns the lifecycle state at now. A redeemed invite stays
// redeemed after its expiry passes.
func (i *Invite) State(now time.Time) State {
	switch {
	case i.Redeemed():
		return StateRedeemed
	case i.Expired(now):
		return StateExpired
	default:
		return StateIssued
	}
}

// check returns the InviteError that Validate would report at now, or nil
func (i *Invite) check(now time.Time) error {
	switch i.State(now) {
	case StateRedeemed:
		return auth.NewInviteError(auth.InviteAlreadyUsed)
	case StateExpired:
		return auth.NewInviteError(auth.InviteExpired)
	}
	return nil
}

// Grantable reports whether role may be assigned through an invite
func Grantable(role auth.Role) bool {
	return role == auth.RoleMember || role == auth.RoleModerator
}
