// Package app wires configuration into a running underwriting service for
// the server, Lambda and CLI entry points.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"underwriting-engine/internal/config"
	"underwriting-engine/internal/handlers"
	"underwriting-engine/internal/services/cache"
	"underwriting-engine/internal/services/catalog"
	"underwriting-engine/internal/services/database"
	s3service "underwriting-engine/internal/services/s3"
	"underwriting-engine/internal/services/underwriting"
)

// App holds the long-lived dependencies of one process.
type App struct {
	Config   *config.Config
	Registry *catalog.Registry
	Service  *underwriting.Service
	DB       *database.DB
	Redis    *cache.RedisCache

	termSheets *s3service.TermSheetStore
	catalogDir string
	logger     *zap.Logger
}

// LoadCatalog reads term sheets from dir, or the embedded term sheets when
// dir is empty.
func LoadCatalog(dir string) (*catalog.Catalog, error) {
	if dir == "" {
		return catalog.LoadEmbedded()
	}
	return catalog.LoadDir(dir)
}

// New builds the service. A missing database falls back to in-memory run
// storage and a missing Redis to an in-process cache; an unreachable
// database that was configured is an error.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{
		Config:     cfg,
		catalogDir: cfg.CatalogDir,
		logger:     logger,
	}
	if cfg.CatalogBucket != "" {
		store, err := s3service.NewTermSheetStore(ctx, cfg.CatalogBucket, cfg.CatalogPrefix, logger.Named("termsheets"))
		if err != nil {
			return nil, err
		}
		if a.catalogDir == "" {
			dir, err := os.MkdirTemp("", "termsheets-")
			if err != nil {
				return nil, fmt.Errorf("failed to create term sheet dir: %w", err)
			}
			a.catalogDir = dir
		}
		a.termSheets = store
	}

	c, err := a.loadCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load product catalog: %w", err)
	}
	a.Registry = catalog.NewRegistry(c)
	logger.Info("Product catalog loaded",
		zap.String("version", c.Version()),
		zap.Int("products", c.Len()),
	)

	var store underwriting.RunStore
	if cfg.DatabaseConfigured() {
		db, err := database.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		repo := database.NewRunRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		a.DB = db
		store = repo
	} else {
		logger.Warn("Database not configured, runs are kept in memory")
		store = database.NewMemoryRunRepository()
	}

	var resultCache cache.ResultCache = cache.NewMemoryCache()
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisCache(cfg.RedisAddr, cfg.CacheTTL, logger.Named("cache"))
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := redisCache.Ping(pingCtx); err != nil {
			logger.Warn("Redis unreachable, results will be recomputed until it recovers",
				zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		a.Redis = redisCache
		resultCache = redisCache
	}

	a.Service = underwriting.NewService(a.Registry, store, resultCache, underwriting.ServiceOptions{
		Concurrency: cfg.BatchConcurrency,
		Logger:      logger.Named("underwriting"),
	})
	return a, nil
}

// ReloadCatalog re-reads the configured term sheets, from S3 when a bucket
// is configured, and swaps them in. A broken catalog leaves the current one
// in place.
func (a *App) ReloadCatalog(ctx context.Context) error {
	next, err := a.loadCatalog(ctx)
	if err != nil {
		return fmt.Errorf("failed to reload product catalog: %w", err)
	}
	prev := a.Registry.Swap(next)
	a.logger.Info("Product catalog reloaded",
		zap.String("previous_version", prev.Version()),
		zap.String("version", next.Version()),
	)
	return nil
}

// loadCatalog refreshes term sheets from S3 when a bucket is configured,
// then reads the catalog directory.
func (a *App) loadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	if a.termSheets != nil {
		if _, err := a.termSheets.Sync(ctx, a.catalogDir); err != nil {
			return nil, err
		}
	}
	return LoadCatalog(a.catalogDir)
}

// HealthDB returns the database for health checks, or nil when runs are
// kept in memory.
func (a *App) HealthDB() handlers.HealthChecker {
	if a.DB == nil {
		return nil
	}
	return a.DB
}

// Close releases connections.
func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.logger.Warn("Failed to close Redis client", zap.Error(err))
		}
	}
}
