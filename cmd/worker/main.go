package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"pitchside/internal/cache"
	"pitchside/internal/config"
	"pitchside/internal/database"
	"pitchside/internal/logger"
	"pitchside/internal/metrics"
	"pitchside/internal/pubsub"
	"pitchside/internal/repository"
	"pitchside/internal/service"
	"pitchside/internal/worker"

	"github.com/joho/godotenv"
)

func main() {
	// Parse mode flag
	mode := flag.String("mode", "cron", "Worker mode: cron|reminders|purge")
	flag.Parse()

	logger := logger.New()

	if err := godotenv.Load(); err != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, err := database.NewPool(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Msgf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	rdb := cache.NewRedisClient(ctx, cfg, logger)
	defer rdb.Close()

	var notifications pubsub.Publisher
	if cfg.GCPProjectID != "" {
		pub, err := pubsub.NewPublisher(ctx, cfg)
		if err != nil {
			logger.Warn().Err(err).Msg("Pub/Sub publisher unavailable; reminders will not be delivered")
		} else {
			notifications = pub
			defer pub.Close()
		}
	}

	reminders := service.NewReminderService(
		repository.NewEntitlementRepo(pool),
		repository.NewWebhookEventRepo(pool),
		notifications,
		cfg.NotificationTopic,
		cfg.AccessExpiringWindow,
		time.Duration(cfg.WebhookEventRetentionDays)*24*time.Hour,
		time.Now,
		logger,
	)

	collector := metrics.New()
	runner := worker.NewRunner(rdb, cfg.CronLockExpiry, cfg.CronJobTimeout, collector, logger)
	jobs := worker.Jobs(reminders, cfg.ReminderSchedule, cfg.RetentionSchedule, logger)

	// Dispatch to the selected mode
	switch *mode {
	case "cron":
		srv := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: collector.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("Metrics listener failed")
			}
		}()
		runErr := runner.Schedule(ctx, jobs, 30*time.Second)
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		stop()
		if runErr != nil {
			logger.Fatal().Msgf("cron worker failed: %v", runErr)
		}
	case worker.JobReminders, worker.JobPurge:
		job, _ := worker.Find(jobs, *mode)
		if err := runner.RunOnce(ctx, job); err != nil && !errors.Is(err, worker.ErrJobLocked) {
			logger.Fatal().Msgf("%s job failed: %v", *mode, err)
		}
	default:
		logger.Fatal().Msgf("Invalid mode: %s", *mode)
	}

	logger.Info().Msgf("%s worker stopped gracefully", *mode)
}
