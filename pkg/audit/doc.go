// Package audit records security-relevant events: logins, logouts,
// registrations, invite issue and redemption, role and status changes and
// denied access.
//
// Events go to a Logger. DBLogger writes the audit_logs table and can
// search it; LogLogger writes structured log lines; MultiLogger fans out to
// several. Request context (request id, client address, user agent) is
// filled from the context by NewEvent.
//
// Audit failures never fail the operation being audited. Callers log the
// error and continue.
package audit
