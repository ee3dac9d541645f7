package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"pitchside/internal/api/v1/router"
	"pitchside/internal/config"
	"pitchside/internal/logger"
	"pitchside/internal/secrets"

	"github.com/joho/godotenv"
)

func main() {
	logger := logger.New()

	// 1. Load configuration
	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Stripe credentials may live in Secret Manager
	if secrets.NeedsSecretManager(cfg) {
		acc, closeAcc, err := secrets.NewSecretManagerAccessor(ctx, cfg.GCPProjectID)
		if err != nil {
			logger.Fatal().Msgf("Failed to create Secret Manager client: %v", err)
		}
		err = secrets.ResolveStripeSecrets(ctx, cfg, acc, logger)
		_ = closeAcc()
		if err != nil {
			logger.Fatal().Msgf("Failed to resolve Stripe secrets: %v", err)
		}
	}
	if cfg.StripeWebhookSecret == "" {
		logger.Warn().Msg("STRIPE_WEBHOOK_SECRET not set; every webhook delivery will be rejected")
	}

	// 3. Build router and its clients
	r, cleanup, err := router.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Msgf("Failed to build router: %v", err)
	}
	defer cleanup()

	// 4. Create HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// 5. Start server in a goroutine
	go func() {
		logger.Info().Msgf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Msgf("Listen: %s", err)
		}
	}()

	// 6. Graceful shutdown
	<-ctx.Done()
	logger.Info().Msg("Shutdown signal received, exiting...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	logger.Info().Msg("Server shut down gracefully")
}
