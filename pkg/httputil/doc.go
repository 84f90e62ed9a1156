// Package httputil provides JSON request/response helpers and generic HTTP
// middleware for the API adapter.
//
// WriteDomainError is the one place that maps the access-control error
// taxonomy onto HTTP:
//
//	auth.ErrAuthFailure, auth.ErrUnauthenticated  401
//	auth.ErrPermissionDenied                      403
//	auth.ErrConflict                              409
//	auth.ErrInvalidInvite                         400, or 404/410 with a reason
//	auth.ErrNotFound                              404
//	auth.ErrInvalidInput                          400
//	*auth.StorageError                            503
//
// Middleware:
//
//	httputil.Chain(
//		httputil.RequestIDMiddleware(logger),
//		httputil.LoggingMiddleware,
//		httputil.ContentTypeMiddleware,
//	)
package httputil
