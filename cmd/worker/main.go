// Package main is the entry point for the stockpost background worker.
// It relays outbox events into notifications and cleans up expired
// idempotency records.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"stockpost/internal/infrastructure/storage/postgres"
	"stockpost/pkg/logger"
)

func main() {
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting stockpost worker")

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(mustEnv("DATABASE_URL")))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalw("failed to ping database", "error", err)
	}

	idempotencyTTL := getEnvDuration("IDEMPOTENCY_TTL", 10*time.Minute)
	store := postgres.NewIdempotencyStore(postgres.NewTxManager(pool), idempotencyTTL)

	dispatcher := postgres.NewNotificationDispatcher(pool.Unwrap())
	relay := postgres.NewOutboxRelay(pool.Unwrap(), getEnvInt("OUTBOX_BATCH_SIZE", 100), dispatcher)

	worker := NewWorker(relay, store, log)

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

// Worker drives the outbox relay loop and periodic cleanup.
type Worker struct {
	relay *postgres.OutboxRelay
	store *postgres.IdempotencyStore
	log   *logger.Logger
}

func NewWorker(relay *postgres.OutboxRelay, store *postgres.IdempotencyStore, log *logger.Logger) *Worker {
	return &Worker{
		relay: relay,
		store: store,
		log:   log.WithComponent("worker"),
	}
}

// Run polls the outbox until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	pollTicker := time.NewTicker(500 * time.Millisecond)
	defer pollTicker.Stop()

	cleanupTicker := time.NewTicker(1 * time.Hour)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-pollTicker.C:
			processed, err := w.relay.ProcessBatch(ctx)
			if err != nil {
				w.log.Errorw("outbox batch failed", "error", err)
				continue
			}
			if processed > 0 {
				w.log.Debugw("processed outbox batch", "count", processed)
			}

		case <-cleanupTicker.C:
			removed, err := w.store.CleanupExpired(ctx)
			if err != nil {
				w.log.Errorw("idempotency cleanup failed", "error", err)
			} else if removed > 0 {
				w.log.Infow("cleaned up idempotency keys", "count", removed)
			}

			dead, err := w.relay.MoveToDLQ(ctx)
			if err != nil {
				w.log.Errorw("dead-lettering failed", "error", err)
			} else if dead > 0 {
				w.log.Warnw("moved exhausted outbox messages to dead letter queue", "count", dead)
			}
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
