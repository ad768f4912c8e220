// cmd/reservations-api/main.go
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

	"go.uber.org/zap"

	"reservations-api/internal/api"
	"reservations-api/internal/common/config"
	"reservations-api/internal/common/database"
	"reservations-api/internal/common/logger"
	"reservations-api/internal/models"
	"reservations-api/internal/outbox/dispatch"
	"reservations-api/internal/outbox/enqueue"
	"reservations-api/internal/outbox/sender"
	"reservations-api/internal/outbox/store"
	"reservations-api/internal/reservations"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting reservations API...",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var redisClient *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redisClient, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redisClient.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redisClient.Close()
	zapLog.Info("Redis connected successfully")

	// --- Schema ---
	// Reservations first: the outbox table references reservations(id).
	resStore := reservations.NewStore(pg.DB, log)
	if err := resStore.EnsureSchema(ctx); err != nil {
		zapLog.Fatal("reservations schema failed", zap.Error(err))
	}

	outboxStore := store.New(pg.DB, log)
	if err := outboxStore.EnsureSchema(ctx); err != nil {
		zapLog.Fatal("outbox schema failed", zap.Error(err))
	}
	zapLog.Info("Database schema ready")

	// --- Senders ---
	registry, err := sender.BuildRegistry(ctx, cfg, log)
	if err != nil {
		zapLog.Fatal("sender registry failed", zap.Error(err))
	}
	zapLog.Info("Channel senders ready",
		zap.String("emailMode", cfg.Notifications.Email.Mode),
		zap.String("whatsappMode", cfg.Notifications.WhatsApp.Mode),
	)

	// --- Outbox services ---
	enqueuer := enqueue.NewService(outboxStore, log, cfg.Notifications.MaxAttempts, providerNames(registry))
	engine := dispatch.NewEngine(outboxStore, registry, log)

	// --- HTTP server ---
	server := api.NewServer(cfg, log, resStore, outboxStore, enqueuer, engine, redisClient)

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      server.Router(),
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	zapLog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("http shutdown failed", zap.Error(err))
	}
	zapLog.Info("Shutdown complete")
}

func providerNames(registry *sender.Registry) enqueue.ProviderNames {
	names := enqueue.ProviderNames{}
	for _, ch := range models.AllChannels {
		if s, ok := registry.For(ch); ok {
			names[ch] = s.Provider()
		}
	}
	return names
}
