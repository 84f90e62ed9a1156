package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/parley/pkg/access"
	"github.com/platinummonkey/parley/pkg/api"
	"github.com/platinummonkey/parley/pkg/audit"
	"github.com/platinummonkey/parley/pkg/auth"
	"github.com/platinummonkey/parley/pkg/config"
	"github.com/platinummonkey/parley/pkg/httputil"
	"github.com/platinummonkey/parley/pkg/invites"
	"github.com/platinummonkey/parley/pkg/middleware"
	"github.com/platinummonkey/parley/pkg/observability"
	"github.com/platinummonkey/parley/pkg/rbac"
	"github.com/platinummonkey/parley/pkg/sessions"
	"github.com/platinummonkey/parley/pkg/storage"
	"github.com/platinummonkey/parley/pkg/users"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout).
		WithField("service", cfg.Observability.OTelServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("Parley stopped with an error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *observability.Logger) error {
	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)
	// Resources registered below are released even if startup fails part way
	defer shutdown.Shutdown(context.Background())

	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: version,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	shutdown.RegisterShutdownFunc("otel", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	db, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	shutdown.RegisterShutdownFunc("database", func(context.Context) error { return db.Close() })
	observability.RegisterDBStats(registry, db, "parley")
	logger.WithField("driver", cfg.Storage.Driver).Info("Database connected")

	checker := observability.NewHealthChecker(version, 5*time.Second)
	checker.AddCheck("database", true, observability.DatabaseCheck(db))

	var redisClient *redis.Client
	if cfg.Sessions.Backend == config.SessionBackendRedis {
		redisClient, err = storage.NewRedisClient(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		shutdown.RegisterShutdownFunc("redis", func(context.Context) error { return redisClient.Close() })
		checker.AddCheck("redis", true, observability.RedisCheck(redisClient))
	}

	scheduler := cron.New()
	shutdown.RegisterShutdownFunc("scheduler", func(ctx context.Context) error {
		select {
		case <-scheduler.Stop().Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	resolver := rbac.NewResolver(nil)
	watchCatalog, err := setupRoleCatalog(ctx, cfg.Access, db, resolver, scheduler, metrics, logger)
	if err != nil {
		return err
	}

	userStore := users.NewStore(db, auth.NewBcryptHasher(cfg.Access.BcryptCost))
	ledger := invites.NewLedger(db, invites.WithPolicy(invites.Policy{
		DefaultTTL: cfg.Access.InviteDefaultTTL,
		MaxTTL:     cfg.Access.InviteMaxTTL,
	}))

	var (
		sessionStore sessions.Store
		limiter      middleware.Limiter
	)
	limits := middleware.LoginRateLimitConfig(cfg.Access.LoginRateLimit, cfg.Access.LoginRateWindow)
	if redisClient != nil {
		sessionStore = sessions.NewRedisStore(redisClient, cfg.Sessions.RedisPrefix)
		limiter = middleware.NewDistributedRateLimiter(redisClient, limits, "parley:ratelimit:login")
	} else {
		memStore := sessions.NewMemoryStore(cfg.Sessions.Capacity, cfg.Sessions.TTL)
		shutdown.RegisterShutdownFunc("sessions", func(context.Context) error { return memStore.Close() })
		sessionStore = memStore
		memLimiter := middleware.NewRateLimiter(limits)
		memLimiter.StartCleanup(observability.WithLogger(ctx, logger))
		limiter = memLimiter
	}
	if cfg.Access.LoginRateLimit == 0 {
		limiter = nil
	}
	sessionManager := sessions.NewManager(sessionStore, userStore, userStore, sessions.WithTTL(cfg.Sessions.TTL))

	auditLogger, auditSearch, err := setupAudit(cfg.Access, db, scheduler, logger)
	if err != nil {
		return err
	}
	shutdown.RegisterShutdownFunc("audit", func(context.Context) error { return auditLogger.Close() })

	service, err := access.NewService(access.Dependencies{
		DB:          db,
		Users:       userStore,
		Invites:     ledger,
		Sessions:    sessionManager,
		Resolver:    resolver,
		Audit:       auditLogger,
		AuditSearch: auditSearch,
		Metrics:     metrics,
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	apiServer := api.NewServer(service, api.Options{
		CookieName:   cfg.Sessions.CookieName,
		CookieSecure: cfg.Sessions.CookieSecure,
		TrustProxy:   cfg.Server.TrustProxy,
		LoginLimiter: limiter,
		Metrics:      metrics,
		Logger:       logger,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      otelhttp.NewHandler(apiServer, "parley-api"),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, checker)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthHandler := httputil.Chain(
		observability.RecoverMiddleware(logger),
		httputil.RequestIDMiddleware(logger),
	)(healthMux)
	healthServer := &http.Server{
		Addr:        cfg.Server.HealthAddress(),
		Handler:     healthHandler,
		ReadTimeout: cfg.Server.ReadTimeout,
	}

	shutdown.AddServer(httpServer)
	shutdown.AddServer(healthServer)
	scheduler.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return serve(httpServer, "API", logger) })
	g.Go(func() error { return serve(healthServer, "health", logger) })
	if watchCatalog != nil {
		g.Go(func() error { return watchCatalog(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		return shutdown.Shutdown(context.Background())
	})

	return g.Wait()
}

func serve(srv *http.Server, name string, logger *observability.Logger) error {
	logger.WithFields(map[string]interface{}{"server": name, "addr": srv.Addr}).Info("Listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s server: %w", name, err)
	}
	return nil
}

// setupAudit builds the audit sink: structured log always, plus the
// database trail (searchable, pruned daily) when enabled
func setupAudit(cfg config.AccessConfig, db *sql.DB, scheduler *cron.Cron, logger *observability.Logger) (audit.Logger, access.AuditSearcher, error) {
	logSink := audit.NewLogLogger(logger)
	if !cfg.AuditEnabled {
		return logSink, nil, nil
	}

	dbSink, err := audit.NewDBLogger(db)
	if err != nil {
		return nil, nil, err
	}

	if cfg.AuditRetention > 0 {
		_, err = scheduler.AddFunc("@daily", func() {
			defer observability.RecoverPanic(logger, "audit retention")
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			removed, err := dbSink.Cleanup(ctx, cfg.AuditRetention)
			if err != nil {
				logger.WithError(err).Warn("Audit retention cleanup failed")
				return
			}
			logger.WithField("removed", removed).Info("Audit retention cleanup complete")
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to schedule audit cleanup: %w", err)
		}
	}

	return audit.NewMultiLogger(logSink, dbSink), dbSink, nil
}
