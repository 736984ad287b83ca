// Package main provides the entrypoint for the fusebox cache invalidation
// worker.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/fusebox/fusebox/internal/config"
	"github.com/fusebox/fusebox/internal/worker"
	"github.com/fusebox/fusebox/pkg/cache"
	"github.com/fusebox/fusebox/pkg/cache/rediscache"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "fusebox-worker"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting fusebox worker")

	cfg, err := config.Load(os.Getenv("FUSEBOX_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		log = log.Level(level)
	}

	if cfg.Worker.ProjectID == "" {
		log.Fatal().Msg("worker.project_id is required")
	}

	// Select the cache store
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var store cache.Store
	if cfg.Redis.Enabled {
		redisStore, err := rediscache.New(ctx, rediscache.Config{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisStore.Close()

		store = redisStore
		log.Info().
			Str("addr", cfg.Redis.Addr).
			Int("db", cfg.Redis.DB).
			Str("key_prefix", cfg.Redis.KeyPrefix).
			Msg("redis store connected")
	} else {
		store = cache.NewMemoryStore()
		log.Warn().Msg("redis disabled, purges run against an in-process store")
	}

	purger := worker.NewPurger(worker.PurgerConfig{
		Store:  store,
		Logger: log,
	})

	handler, err := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
		ProjectID:        cfg.Worker.ProjectID,
		SubscriptionName: cfg.Worker.Subscription,
		Purger:           purger,
		Logger:           log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create pubsub handler")
	}

	// Health check server for the container platform
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok","version":%q}`, Version)
	})

	healthServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", healthServer.Addr).
			Msg("health server listening")

		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// Start consuming purge messages
	receiveDone := make(chan struct{})
	go func() {
		defer close(receiveDone)
		if err := handler.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("subscriber error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	// The receive loop finishes in-flight messages before returning
	select {
	case <-receiveDone:
	case <-time.After(cfg.Server.ShutdownTimeout):
		log.Warn().Msg("subscriber did not drain in time")
	}

	if err := handler.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close pubsub client")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
