// Package users is the credential store: account records, password
// verification and uniqueness of usernames and emails.
//
// Verify never distinguishes an unknown identifier from a wrong password or
// an inactive account; all three return auth.ErrAuthFailure after a bcrypt
// comparison of similar cost. Create pre-checks for duplicates and relies on
// the UNIQUE constraints as the race backstop, mapping a violation to
// auth.ErrConflict. Driver failures surface as *auth.StorageError.
//
// A Store bound to a transaction (WithTx) runs every statement inside it,
// which is how registration creates a user and redeems an invite atomically.
package users
