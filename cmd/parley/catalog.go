package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/parley/pkg/config"
	"github.com/platinummonkey/parley/pkg/observability"
	"github.com/platinummonkey/parley/pkg/rbac"
)

// setupRoleCatalog installs the configured role catalog into resolver. The
// database catalog is refreshed on cfg.RolesRefresh; a catalog file is
// watched for changes by the returned function (nil when no file is
// configured). Without either, the built-in catalog stays.
func setupRoleCatalog(
	ctx context.Context,
	cfg config.AccessConfig,
	db *sql.DB,
	resolver *rbac.Resolver,
	scheduler *cron.Cron,
	metrics *observability.Metrics,
	logger *observability.Logger,
) (func(context.Context) error, error) {
	if cfg.RolesFromDB {
		store := rbac.NewStore(db)
		if err := store.SeedDefaults(ctx); err != nil {
			return nil, err
		}
		if err := store.Refresh(ctx, resolver); err != nil {
			return nil, fmt.Errorf("failed to load role catalog from database: %w", err)
		}
		metrics.CatalogReloadsTotal.WithLabelValues("db", observability.ResultSuccess).Inc()

		_, err := scheduler.AddFunc(cfg.RolesRefresh, func() {
			defer observability.RecoverPanic(logger, "role catalog refresh")
			if err := store.Refresh(context.Background(), resolver); err != nil {
				metrics.CatalogReloadsTotal.WithLabelValues("db", observability.ResultFailure).Inc()
				logger.WithError(err).Warn("Role catalog refresh failed, keeping previous catalog")
				return
			}
			metrics.CatalogReloadsTotal.WithLabelValues("db", observability.ResultSuccess).Inc()
		})
		if err != nil {
			return nil, fmt.Errorf("failed to schedule role catalog refresh: %w", err)
		}
		logger.WithField("schedule", cfg.RolesRefresh).Info("Role catalog loaded from database")
	}

	if cfg.RolesFile == "" {
		return nil, nil
	}

	source := rbac.NewFileSource(cfg.RolesFile, resolver, logger)
	source.OnReload = func(err error) {
		result := observability.ResultSuccess
		if err != nil {
			result = observability.ResultFailure
		}
		metrics.CatalogReloadsTotal.WithLabelValues("file", result).Inc()
	}
	if err := source.Load(); err != nil {
		return nil, fmt.Errorf("failed to load role catalog %s: %w", cfg.RolesFile, err)
	}
	logger.WithField("path", cfg.RolesFile).Info("Role catalog loaded from file")

	return source.Watch, nil
}
