// Package middleware provides the HTTP middleware that sits in front of the
// access-control handlers.
//
//   - ClientInfoMiddleware records the caller IP and user agent for audit events
//   - SessionMiddleware resolves the session cookie or bearer handle to the
//     current user on every request, so bans and role changes apply immediately
//   - RateLimit throttles login and registration per client IP, in process
//     (RateLimiter) or shared through Redis (DistributedRateLimiter)
//
// Ordering (outer to inner):
//
//	router.Use(middleware.ClientInfoMiddleware(trustProxy))
//	router.Use(sessions.Handler)
//	login.Use(middleware.RateLimit(limiter, metrics, "login"))
package middleware
