// Package invites is the invite ledger: single-use, time-limited codes that
// gate registration at a pre-assigned role.
//
// An invite is Issued until it is either redeemed or reaches its expiry.
// Expiry is computed, never stored, and the boundary is exclusive: an invite
// whose expires_at equals the current time is already expired. Redemption
// sets used_at and used_by exactly once through one conditional UPDATE, so
// of N concurrent Redeem calls for the same code exactly one succeeds.
package invites
