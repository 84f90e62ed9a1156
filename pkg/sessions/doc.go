// Package sessions binds opaque session handles to user identities.
//
// A Manager mints handles on login, resolves them back to the current user
// and removes them on logout. Resolution re-reads the user on every call, so
// a user who is banned, restricted or muted loses their session on its next
// use rather than through an eager revocation sweep.
//
// Handles are 256-bit random hex strings. Stores key entries by the SHA-256
// of the handle so a dump of the store cannot be replayed as live sessions.
//
// Two Store implementations exist: MemoryStore (bounded LRU with per-entry
// expiry, one process) and RedisStore (shared across instances).
package sessions
