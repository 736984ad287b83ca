// Package main provides the entrypoint for the fusebox admin daemon.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/fusebox/fusebox/internal/admin"
	"github.com/fusebox/fusebox/internal/config"
	"github.com/fusebox/fusebox/internal/telemetry"
	"github.com/fusebox/fusebox/pkg/breaker"
	"github.com/fusebox/fusebox/pkg/cache"
	"github.com/fusebox/fusebox/pkg/cache/rediscache"
	"github.com/fusebox/fusebox/pkg/token"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "fuseboxd"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting fusebox admin daemon")

	cfg, err := config.Load(os.Getenv("FUSEBOX_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.FileUsed() != "" {
		log.Info().Str("file", cfg.FileUsed()).Msg("configuration loaded")
	}

	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		log = log.Level(level)
	}

	// Initialize OpenTelemetry
	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.Telemetry.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := admin.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Select the cache store
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
		log.Warn().Msg("redis disabled, using in-process memory store")
	}

	// Initialize the circuit registry. Circuits with configured overrides
	// are registered up front; the registry is first-write-wins, so this
	// pins their thresholds before any caller can create them with
	// defaults.
	registry := breaker.NewRegistry(log)
	for name := range cfg.Circuits.Overrides {
		cc := cfg.Circuits.For(name)
		registry.GetCircuit(name, breaker.Options{
			FailureThreshold: cc.FailureThreshold,
			ResetTimeout:     cc.ResetTimeout,
			SuccessThreshold: cc.SuccessThreshold,
		})
	}

	// Initialize token service (signing key comes from configuration)
	signingKey := cfg.Auth.SigningKey
	if signingKey == "" {
		signingKey = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("using default token signing key - not secure for production")
	}

	tokens := token.New(token.Config{
		SigningKey: []byte(signingKey),
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
		TTL:        cfg.Auth.TokenTTL,
		Store:      store,
		Logger:     log,
	})
	log.Info().Msg("token service initialized")

	interceptor := cache.New(store, cache.Options{
		DefaultTTL: cfg.Cache.DefaultTTL,
		Logger:     log,
	})

	// Create router with configuration
	router := admin.NewRouter(admin.Config{
		Version:   Version,
		BuildTime: BuildTime,
		Logger:    log,
		Metrics:   metrics,
		Registry:  registry,
		Store:     store,
		Cache:     interceptor,
		Tokens:    tokens,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	// Let in-flight cache writes land before the store goes away
	interceptor.Flush()

	log.Info().Msg("server stopped")
}
