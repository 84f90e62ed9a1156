// Package access is the inbound boundary of the access-control core. A
// Service combines the credential store, invite ledger, session manager and
// permission resolver into the operations the HTTP layer calls: login,
// logout, current user, permission checks, invite management, registration
// and user administration.
//
// Registration is the one multi-step write. It validates the invite, creates
// the user with the invite's role and redeems the invite inside a single
// database transaction; if the conditional redemption loses a race the user
// row is rolled back. The registration path reports every invite problem as
// the generic auth.ErrInvalidInvite.
//
// Every operation is traced, counted and, where it changes state or denies
// access, written to the audit trail. Audit failures are logged and never
// fail the operation.
package access
