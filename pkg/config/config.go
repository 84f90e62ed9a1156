package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/parley/pkg/observability"
	"github.com/platinummonkey/parley/pkg/storage"
)

// Session backends
const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage configuration
	Storage storage.Config

	// Session configuration
	Sessions SessionConfig

	// Access policy configuration
	Access AccessConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string

	// Honour X-Forwarded-For / X-Real-IP from a fronting proxy
	TrustProxy bool
}

// SessionConfig holds session store settings
type SessionConfig struct {
	Backend     string
	TTL         time.Duration
	Capacity    int
	CookieName   string
	CookieSecure bool
	RedisPrefix  string
}

// AccessConfig holds credential, invite and role catalog policy
type AccessConfig struct {
	BcryptCost int

	InviteDefaultTTL time.Duration
	InviteMaxTTL     time.Duration

	RolesFile    string
	RolesFromDB  bool
	RolesRefresh string

	// Per-IP attempts on login and register within LoginRateWindow
	LoginRateLimit  int
	LoginRateWindow time.Duration

	AuditEnabled   bool
	AuditRetention time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
	OTelSampleRatio    float64
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Sessions:      loadSessionConfig(),
		Access:        loadAccessConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("PARLEY_HOST", "0.0.0.0"),
		Port:            getEnv("PARLEY_PORT", "8080"),
		ReadTimeout:     getEnvDuration("PARLEY_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("PARLEY_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("PARLEY_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("PARLEY_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("PARLEY_HEALTH_PORT", "9090"),
		TrustProxy:      getEnvBool("PARLEY_TRUST_PROXY", false),
	}
}

func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	cfg.Driver = getEnv("PARLEY_DATABASE_DRIVER", cfg.Driver)
	cfg.URL = getEnv("PARLEY_DATABASE_URL", cfg.URL)
	if maxConns := getEnvInt("PARLEY_DATABASE_MAX_CONNS", 0); maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns := getEnvInt("PARLEY_DATABASE_MIN_CONNS", 0); minConns > 0 {
		cfg.MinConns = minConns
	}
	if timeout := getEnvDuration("PARLEY_DATABASE_TIMEOUT", 0); timeout > 0 {
		cfg.Timeout = timeout
	}
	cfg.EnsureSchema = getEnvBool("PARLEY_DATABASE_ENSURE_SCHEMA", cfg.EnsureSchema)

	// Redis config
	cfg.RedisURL = getEnv("PARLEY_REDIS_URL", cfg.RedisURL)
	cfg.RedisPassword = getEnv("PARLEY_REDIS_PASSWORD", cfg.RedisPassword)
	if redisDB := getEnvInt("PARLEY_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisPoolSize := getEnvInt("PARLEY_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}

	return cfg
}

func loadSessionConfig() SessionConfig {
	return SessionConfig{
		Backend:      strings.ToLower(getEnv("PARLEY_SESSION_BACKEND", SessionBackendMemory)),
		TTL:          getEnvDuration("PARLEY_SESSION_TTL", 24*time.Hour),
		Capacity:     getEnvInt("PARLEY_SESSION_CAPACITY", 100000),
		CookieName:   getEnv("PARLEY_SESSION_COOKIE", "parley_session"),
		CookieSecure: getEnvBool("PARLEY_SESSION_COOKIE_SECURE", false),
		RedisPrefix:  getEnv("PARLEY_SESSION_REDIS_PREFIX", "parley:session"),
	}
}

func loadAccessConfig() AccessConfig {
	return AccessConfig{
		BcryptCost:       getEnvInt("PARLEY_BCRYPT_COST", 10),
		InviteDefaultTTL: time.Duration(getEnvInt("PARLEY_INVITE_DEFAULT_TTL_HOURS", 24)) * time.Hour,
		InviteMaxTTL:     time.Duration(getEnvInt("PARLEY_INVITE_MAX_TTL_HOURS", 720)) * time.Hour,
		RolesFile:        getEnv("PARLEY_ROLES_FILE", ""),
		RolesFromDB:      getEnvBool("PARLEY_ROLES_FROM_DB", false),
		RolesRefresh:     getEnv("PARLEY_ROLES_REFRESH", "@every 5m"),
		LoginRateLimit:   getEnvInt("PARLEY_LOGIN_RATE_LIMIT", 10),
		LoginRateWindow:  getEnvDuration("PARLEY_LOGIN_RATE_WINDOW", time.Minute),
		AuditEnabled:     getEnvBool("PARLEY_AUDIT_ENABLED", true),
		AuditRetention:   getEnvDuration("PARLEY_AUDIT_RETENTION", 90*24*time.Hour),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("PARLEY_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("PARLEY_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("PARLEY_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("PARLEY_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("PARLEY_OTEL_SERVICE_NAME", "parley"),
		OTelServiceVersion: getEnv("PARLEY_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("PARLEY_OTEL_INSECURE", true),
		OTelSampleRatio:    getEnvFloat("PARLEY_OTEL_SAMPLE_RATIO", 1),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	switch c.Storage.Driver {
	case storage.DriverPostgres, storage.DriverSQLite:
	default:
		return fmt.Errorf("invalid database driver: %s (must be postgres or sqlite3)", c.Storage.Driver)
	}
	if c.Storage.URL == "" {
		return fmt.Errorf("database URL is required")
	}

	switch c.Sessions.Backend {
	case SessionBackendMemory:
		if c.Sessions.Capacity <= 0 {
			return fmt.Errorf("session capacity must be positive")
		}
	case SessionBackendRedis:
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("redis URL is required for redis sessions")
		}
	default:
		return fmt.Errorf("invalid session backend: %s (must be memory or redis)", c.Sessions.Backend)
	}
	if c.Sessions.TTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}
	if c.Sessions.CookieName == "" {
		return fmt.Errorf("session cookie name is required")
	}

	if c.Access.BcryptCost < 4 || c.Access.BcryptCost > 31 {
		return fmt.Errorf("bcrypt cost must be between 4 and 31, got %d", c.Access.BcryptCost)
	}
	if c.Access.InviteDefaultTTL <= 0 {
		return fmt.Errorf("default invite TTL must be positive")
	}
	if c.Access.InviteMaxTTL < c.Access.InviteDefaultTTL {
		return fmt.Errorf("max invite TTL %s is below the default %s", c.Access.InviteMaxTTL, c.Access.InviteDefaultTTL)
	}
	if c.Access.RolesFromDB && c.Access.RolesFile != "" {
		return fmt.Errorf("roles file and database role catalog are mutually exclusive")
	}
	if c.Access.RolesFromDB {
		if _, err := cron.ParseStandard(c.Access.RolesRefresh); err != nil {
			return fmt.Errorf("invalid roles refresh schedule %q: %w", c.Access.RolesRefresh, err)
		}
	}
	if c.Access.LoginRateLimit < 0 {
		return fmt.Errorf("login rate limit must not be negative")
	}
	if c.Access.LoginRateLimit > 0 && c.Access.LoginRateWindow <= 0 {
		return fmt.Errorf("login rate window must be positive")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// Address returns the API listener address
func (s ServerConfig) Address() string {
	return s.Host + ":" + s.Port
}

// HealthAddress returns the health/metrics listener address
func (s ServerConfig) HealthAddress() string {
	return s.Host + ":" + s.HealthPort
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
