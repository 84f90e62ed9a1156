// Package api exposes the access-control service over a JSON HTTP API.
//
// Routes live under /api/v1 and are served by a gorilla/mux router:
//
//	POST /auth/login              open a session (rate limited per client IP)
//	POST /auth/logout             end the session; always succeeds
//	POST /auth/register           create an account with an invite code (rate limited)
//	GET  /auth/me                 the current user
//	GET  /invites/{code}/preview  public invite preview; failures are generic
//	POST /invites                 issue an invite (create_invites)
//	GET  /invites                 list invites (create_invites)
//	GET  /invites/{code}          invite state with the failure reason (create_invites)
//	GET  /users                   list users (manage_users)
//	PUT  /users/{id}/role         change a role (manage_users)
//	PUT  /users/{id}/status       change a status (manage_users)
//	GET  /audit/events            search the audit trail (manage_settings)
//	GET  /audit/export            export the audit trail as json, ndjson or csv
//	GET  /roles                   the role catalog in effect
//	GET  /me/permissions          the caller's effective permissions
//
// The session handle travels in an HttpOnly cookie; API clients may send it
// as "Authorization: Bearer <handle>" instead. Every request resolves the
// session afresh, so bans and role changes take effect on the next request.
package api
