// Package worker runs the scheduled housekeeping jobs. Every replica may run
// the scheduler; a Redis lock makes sure each firing executes once.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pitchside/internal/metrics"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const lockPrefix = "pitchside:cron:"

// ErrJobLocked is returned when another replica holds the job's lock.
var ErrJobLocked = errors.New("job is locked by another runner")

// Job is one named unit of scheduled work. Schedule uses the six-field cron
// syntax with seconds.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

type Runner struct {
	rs         *redsync.Redsync
	lockExpiry time.Duration
	timeout    time.Duration
	metrics    *metrics.Collector
	logger     zerolog.Logger
}

func NewRunner(rdb *redis.Client, lockExpiry, timeout time.Duration, m *metrics.Collector, logger zerolog.Logger) *Runner {
	return &Runner{
		rs:         redsync.New(goredis.NewPool(rdb)),
		lockExpiry: lockExpiry,
		timeout:    timeout,
		metrics:    m,
		logger:     logger.With().Str("component", "worker").Logger(),
	}
}

// RunOnce executes job while holding its lock. The lock is tried once: a
// firing that loses the race is skipped rather than queued.
func (r *Runner) RunOnce(ctx context.Context, job Job) error {
	logger := r.logger.With().Str("job", job.Name).Logger()

	mutex := r.rs.NewMutex(lockPrefix+job.Name,
		redsync.WithTries(1),
		redsync.WithExpiry(r.lockExpiry),
	)
	if err := mutex.LockContext(ctx); err != nil {
		logger.Info().Err(err).Msg("Job lock not acquired; skipping run")
		r.metrics.JobRun(job.Name, "skipped")
		return fmt.Errorf("%w: %v", ErrJobLocked, err)
	}
	defer func() {
		if _, err := mutex.UnlockContext(context.WithoutCancel(ctx)); err != nil {
			logger.Warn().Err(err).Msg("Failed to release job lock")
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	logger.Info().Msg("Job started")
	if err := job.Run(runCtx); err != nil {
		logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("Job failed")
		r.metrics.JobRun(job.Name, "error")
		return err
	}
	logger.Info().Dur("elapsed", time.Since(start)).Msg("Job finished")
	r.metrics.JobRun(job.Name, "ok")
	return nil
}

// Schedule registers jobs and blocks until ctx is cancelled. In-flight runs
// get shutdownGrace to finish.
func (r *Runner) Schedule(ctx context.Context, jobs []Job, shutdownGrace time.Duration) error {
	c := cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC))
	for _, job := range jobs {
		if _, err := c.AddFunc(job.Schedule, func() {
			_ = r.RunOnce(ctx, job)
		}); err != nil {
			return fmt.Errorf("schedule %s: %w", job.Name, err)
		}
		r.logger.Info().Str("job", job.Name).Str("schedule", job.Schedule).Msg("Job scheduled")
	}

	c.Start()
	r.logger.Info().Int("jobs", len(jobs)).Msg("Scheduler started")
	<-ctx.Done()

	r.logger.Info().Msg("Shutting down scheduler")
	select {
	case <-c.Stop().Done():
		r.logger.Info().Msg("Scheduler stopped gracefully")
	case <-time.After(shutdownGrace):
		r.logger.Warn().Msg("Scheduler stop timed out; abandoning running jobs")
	}
	return nil
}
