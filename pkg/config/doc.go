// Package config loads and validates the server configuration from
// PARLEY_* environment variables.
//
// Server settings:
//
//	PARLEY_HOST="0.0.0.0"
//	PARLEY_PORT="8080"
//	PARLEY_HEALTH_PORT="9090"
//	PARLEY_READ_TIMEOUT="15s"
//
// Database settings:
//
//	PARLEY_DATABASE_DRIVER="postgres"  # postgres, sqlite3
//	PARLEY_DATABASE_URL="postgres://localhost/parley?sslmode=disable"
//	PARLEY_DATABASE_MAX_CONNS="20"
//
// Sessions:
//
//	PARLEY_SESSION_BACKEND="redis"  # memory, redis
//	PARLEY_SESSION_TTL="24h"
//	PARLEY_REDIS_URL="redis://localhost:6379/0"
//
// Access policy:
//
//	PARLEY_BCRYPT_COST="12"
//	PARLEY_INVITE_DEFAULT_TTL_HOURS="24"
//	PARLEY_INVITE_MAX_TTL_HOURS="720"
//	PARLEY_ROLES_FILE="/etc/parley/roles.yaml"
//	PARLEY_ROLES_FROM_DB="true"
//	PARLEY_ROLES_REFRESH="@every 5m"
//	PARLEY_LOGIN_RATE_LIMIT="10"
//
// Observability:
//
//	PARLEY_LOG_LEVEL="info"  # debug, info, warn, error
//	PARLEY_OTEL_ENABLED="true"
//	PARLEY_OTEL_ENDPOINT="otel-collector:4317"
//
// Usage:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
package config
