package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"pitchside/internal/config"
	"pitchside/internal/database"
	"pitchside/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	"github.com/joho/godotenv"
)

func main() {
	logger := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]

	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}

	m, err := database.NewMigrator(cfg)
	if err != nil {
		logger.Fatal().Msgf("Failed to initialize migrations: %v", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warn().Msgf("Failed to close migrate: %v, %v", srcErr, dbErr)
		}
	}()

	switch command {
	case "up":
		if err := m.Up(); errors.Is(err, migrate.ErrNoChange) {
			logger.Info().Msg("No change: database is up to date")
		} else if err != nil {
			logger.Fatal().Msgf("Migration up failed: %v", err)
		} else {
			logger.Info().Msg("Migrations applied")
		}
	case "down":
		if err := m.Steps(-1); err != nil {
			logger.Fatal().Msgf("Rollback failed: %v", err)
		}
		logger.Info().Msg("Rolled back one migration")
	case "goto":
		if len(os.Args) < 3 {
			logger.Fatal().Msg("goto needs a version number")
		}
		version, err := strconv.ParseUint(os.Args[2], 10, 64)
		if err != nil {
			logger.Fatal().Msgf("Invalid version: %v", err)
		}
		if err := m.Migrate(uint(version)); errors.Is(err, migrate.ErrNoChange) {
			logger.Info().Msgf("No change: database already at version %d", version)
		} else if err != nil {
			logger.Fatal().Msgf("Migration to version %d failed: %v", version, err)
		} else {
			logger.Info().Msgf("Migrated to version %d", version)
		}
	case "version":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			logger.Info().Msg("No migrations applied yet")
			return
		}
		if err != nil {
			logger.Fatal().Msgf("Failed to read version: %v", err)
		}
		logger.Info().Uint("version", version).Bool("dirty", dirty).Msg("Current migration version")
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: migrate <command>")
	fmt.Println("  up       apply all pending migrations")
	fmt.Println("  down     roll back the last migration")
	fmt.Println("  goto N   migrate to version N")
	fmt.Println("  version  print the current version")
}
