// Package main is the entry point for the stockkeeper API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"stockkeeper/internal/app"
	"stockkeeper/internal/config"
	v1 "stockkeeper/internal/infrastructure/http/v1"
	"stockkeeper/internal/infrastructure/http/v1/middleware"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := app.NewLogger(cfg)
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	log.Infow("starting stockkeeper server", "version", version, "env", cfg.AppEnv)

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to initialize application", "error", err)
	}
	defer application.Close()
	log.Info("database connection established")

	var idempotency middleware.IdempotencyStore
	if cfg.IdempotencyEnabled {
		idempotency = application.Idempotency
	}

	mode := gin.ReleaseMode
	if cfg.IsDevelopment() {
		mode = gin.DebugMode
	}

	router := v1.NewRouter(v1.RouterConfig{
		Mode:          mode,
		Logger:        log,
		Database:      application.Pool,
		Version:       version,
		Numerator:     application.Numerator,
		Products:      application.Products,
		Opnames:       application.Opnames,
		Adjustments:   application.Adjustments,
		Audit:         application.Audit,
		Idempotency:   idempotency,
		RetryAttempts: cfg.TxRetryAttempts,
	})

	server := &http.Server{
		Addr:         ":" + cfg.AppPort,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", cfg.AppPort, "idempotency", cfg.IdempotencyEnabled)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.AppShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
