// Package main is the entry point for the stockkeeper background worker.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"stockkeeper/internal/app"
	"stockkeeper/internal/config"
	"stockkeeper/pkg/logger"
)

const statsInterval = 5 * time.Minute

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting stockkeeper worker")

	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to initialize application", "error", err)
	}
	defer application.Close()

	worker := NewWorker(application.Idempotency, application.Pool, cfg.CleanupInterval, log)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// KeyCleaner removes expired idempotency keys.
type KeyCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// StatsLogger reports connection pool usage.
type StatsLogger interface {
	LogStats(ctx context.Context)
}

// Worker runs periodic maintenance.
type Worker struct {
	keys            KeyCleaner
	stats           StatsLogger
	cleanupInterval time.Duration
	statsInterval   time.Duration
	log             *logger.Logger
}

// NewWorker creates a worker. A non-positive interval defaults to one hour.
func NewWorker(keys KeyCleaner, stats StatsLogger, cleanupInterval time.Duration, log *logger.Logger) *Worker {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Hour
	}
	return &Worker{
		keys:            keys,
		stats:           stats,
		cleanupInterval: cleanupInterval,
		statsInterval:   statsInterval,
		log:             log.WithComponent("worker"),
	}
}

// Run cleans up once immediately, then on every tick until ctx is done.
func (w *Worker) Run(ctx context.Context) {
	cleanupTicker := time.NewTicker(w.cleanupInterval)
	defer cleanupTicker.Stop()
	statsTicker := time.NewTicker(w.statsInterval)
	defer statsTicker.Stop()

	w.cleanupIdempotency(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-cleanupTicker.C:
			w.cleanupIdempotency(ctx)
		case <-statsTicker.C:
			if w.stats != nil {
				w.stats.LogStats(ctx)
			}
		}
	}
}

func (w *Worker) cleanupIdempotency(ctx context.Context) {
	n, err := w.keys.CleanupExpired(ctx)
	if err != nil {
		w.log.Errorw("idempotency cleanup failed", "error", err)
		return
	}
	if n > 0 {
		w.log.Infow("cleaned up idempotency keys", "count", n)
	}
}
