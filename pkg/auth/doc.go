// Package auth holds the identity model shared by the access-control packages.
//
// # Overview
//
// The package defines the user record, the closed role and status enumerations,
// the permission vocabulary, the error taxonomy returned by every access-control
// operation, and two credential primitives: an opaque token generator used for
// invite codes and session handles, and a bcrypt password hasher.
//
// # Roles and Statuses
//
//	RoleAdmin     - every permission (wildcard)
//	RoleModerator - delete_messages, create_invites
//	RoleMember    - no privileged permissions
//
//	StatusActive     - may log in and hold sessions
//	StatusBanned     - sessions resolve as unauthenticated
//	StatusRestricted - sessions resolve as unauthenticated
//	StatusMuted      - sessions resolve as unauthenticated
//
// # Errors
//
// Callers branch on outcomes with errors.Is:
//
//	user, err := sessions.ResolveCurrentUser(ctx, handle)
//	switch {
//	case errors.Is(err, auth.ErrUnauthenticated):
//		// 401
//	case err != nil:
//		// *auth.StorageError, infrastructure failure
//	}
//
// Invite failures carry a reason for the issuer-facing validate path:
//
//	var ie *auth.InviteError
//	if errors.As(err, &ie) {
//		log.Println(ie.Reason) // not_found, expired, already_used
//	}
//
// # Tokens
//
// Invite codes are 16 random bytes rendered as 32 lowercase hex characters.
// Session handles are 32 random bytes rendered as 64 lowercase hex characters
// and are stored server-side only as a SHA256 digest.
package auth
