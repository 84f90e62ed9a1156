// Package observability provides structured logging, Prometheus metrics,
// health checks and OpenTelemetry tracing.
//
// # Structured Logging
//
// Logger wraps logrus with a JSON formatter:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("user_id", user.ID).Info("login succeeded")
//
// Request-scoped loggers travel in the context:
//
//	ctx = observability.WithLogger(ctx, logger)
//	ctx = observability.WithRequestID(ctx, reqID)
//	observability.FromContext(ctx).Warn("invite rejected")
//
// Invite codes and session handles must never be logged in full; use
// auth.TokenPrefix.
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.LoginAttemptsTotal.WithLabelValues(observability.ResultSuccess).Inc()
//
// HTTPMetricsMiddleware labels requests by their gorilla/mux route template.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(version, 5*time.Second)
//	checker.AddCheck("database", true, observability.DatabaseCheck(db))
//	observability.RegisterHealthRoutes(mux, checker)
//
// # Tracing
//
// InitOTel installs OTLP/gRPC trace and metric exporters. StartSpan and
// EndSpan wrap the global tracer; with tracing disabled they are no-ops.
package observability
