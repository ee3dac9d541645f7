package main

import (
	"context"
	"fmt"
	"time"

	"pitchside/internal/config"
	"pitchside/internal/logger"
	"pitchside/internal/pubsub"

	gpubsub "cloud.google.com/go/pubsub"
	"github.com/joho/godotenv"
	"google.golang.org/api/option"
)

// For local development, 'host.docker.internal' lets the emulator reach the API on the host.
const dlqEndpointLocal = "http://host.docker.internal:8080/v1/dlq/record"

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, relying on system environment variables.")
	}

	logger := logger.New()
	logger.Info().Msg("Starting Pub/Sub setup for the local environment.")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Failed to load config: %v", err)
	}
	if cfg.GCPProjectID == "" {
		logger.Fatal().Msg("GCP_PROJECT_ID is not set in the environment.")
	}
	if !cfg.IsLocalPubSub() {
		logger.Fatal().Msg("PUBSUB_EMULATOR_HOST must be set; this tool resets every topic.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := gpubsub.NewClient(ctx, cfg.GCPProjectID,
		option.WithEndpoint(cfg.PubSubEmulatorHost),
		option.WithoutAuthentication(),
	)
	if err != nil {
		logger.Fatal().Msgf("Failed to create Pub/Sub client: %v", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error().Msgf("Failed to close pubsub client: %v", err)
		}
	}()

	endpoint := cfg.DLQEndpointURL
	if endpoint == "" {
		endpoint = dlqEndpointLocal
	}

	if err := pubsub.ResetEmulator(ctx, client, logger); err != nil {
		logger.Fatal().Msgf("Failed to reset emulator: %v", err)
	}
	err = pubsub.EnsureTopology(ctx, client, pubsub.Topology{
		Topic:               cfg.NotificationTopic,
		DLQEndpoint:         endpoint,
		Retention:           7 * 24 * time.Hour,
		MaxDeliveryAttempts: 5,
	}, logger)
	if err != nil {
		logger.Fatal().Msgf("Failed to create Pub/Sub resources: %v", err)
	}

	logger.Info().Msg("Pub/Sub setup for local environment complete.")
}
