package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/amqp"
	"fintrack/internal/auth"
	"fintrack/internal/backend"
	"fintrack/internal/cli"
	"fintrack/internal/events"
	apphttp "fintrack/internal/http"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := cli.OpenBackend(ctx, logger, cfg)
	defer func() {
		if err := store.Cleanup(); err != nil {
			logger.Error("Failed to close storage backend", log.FieldError, err)
		}
	}()

	bcfg, _ := backend.FromAppConfig(cfg)
	insightCache, err := backend.NewFactory(logger.Logger).CreateCache(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize insight cache", log.FieldError, err)
		os.Exit(1)
	}
	defer func() {
		if err := insightCache.Cleanup(); err != nil {
			logger.Warn("Failed to close insight cache", log.FieldError, err)
		}
	}()

	secret := cfg.JWTSecret
	if secret == "" {
		// Only reachable with the memory backend; tokens die with the process.
		secret = uuid.NewString() + uuid.NewString()
		logger.Warn("JWT_SECRET not set, using an ephemeral secret")
	}
	authSvc := auth.NewService(store.Store, auth.NewTokenIssuer(secret, cfg.TokenTTL), logger)

	// AMQP is optional: without it the sheets mirror simply does not update.
	var publisher services.Publisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, continuing without change publishing", log.FieldError, err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}

	hub := events.NewHub(logger.Logger)
	go hub.Run(ctx)

	insights := services.NewInsightService(store.Store, insightCache.Cache, logger)
	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Auth:               authSvc,
		Ledger:             services.NewLedgerService(store.Store, insights, hub, publisher, logger),
		Insights:           insights,
		Hub:                hub,
		Store:              store.Store,
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		AllowedOrigins:     cfg.AllowedOrigins,
	})
	srv.WriteTimeout = 15 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cancel()
	})

	logger.Info("Starting fintrack server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		log.FieldOperation, log.OpStartup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}
