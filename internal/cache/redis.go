package cache

import (
	"context"
	"time"

	"pitchside/internal/config"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// NewRedisClient connects to the configured Redis. An unreachable server is
// logged, not fatal: callers treat the cache as optional.
func NewRedisClient(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Could not connect to Redis")
	} else {
		logger.Info().Str("addr", cfg.RedisAddr).Msg("Connected to Redis")
	}
	return client
}
