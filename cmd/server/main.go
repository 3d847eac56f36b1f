// Package main provides the HTTP server for the underwriting engine. It
// serves the same handlers as the Lambda functions and reloads the product
// catalog on SIGHUP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"underwriting-engine/internal/app"
	"underwriting-engine/internal/config"
	"underwriting-engine/internal/handlers"
	"underwriting-engine/internal/utils"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger first
	if err := utils.InitLogger(cfg.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer utils.Sync()
	logger := utils.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize app", zap.Error(err))
	}
	defer a.Close()

	go reloadOnHangup(ctx, a, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		Handler:           newRouter(a, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("Underwriting engine API server listening",
		zap.String("addr", srv.Addr),
		zap.String("stage", cfg.Stage),
		zap.String("catalog_version", a.Registry.Version()),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("Server failed", zap.Error(err))
	}
	logger.Info("Server stopped")
}

func newRouter(a *app.App, logger *zap.Logger) http.Handler {
	api := handlers.NewUnderwriteHandler(a.Service, logger.Named("api"))
	health := handlers.NewHealthHandler(a.HealthDB(), a.Registry)

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", handlers.HTTP(health.Handle))
	mux.HandleFunc("/api/health", handlers.HTTP(health.Handle))

	// Underwriting
	mux.HandleFunc("/api/underwrite", handlers.HTTP(api.Underwrite))
	mux.HandleFunc("/api/underwrite/batch", handlers.HTTP(api.Batch))
	mux.HandleFunc("/api/runs", handlers.HTTP(api.Run))

	// Product catalog
	mux.HandleFunc("/api/products", handlers.HTTP(api.Products))

	// Setup CORS
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(mux)
}

// reloadOnHangup swaps in a freshly read catalog on each SIGHUP.
func reloadOnHangup(ctx context.Context, a *app.App, logger *zap.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := a.ReloadCatalog(ctx); err != nil {
				logger.Error("Catalog reload rejected", zap.Error(err))
			}
		}
	}
}
