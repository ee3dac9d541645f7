package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pitchside/internal/config"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// DSN returns the connection string adjusted for the environment. Local
// databases run without TLS; hosted ones sit behind a transaction pooler that
// cannot keep server-side prepared statements.
func DSN(cfg *config.Config) string {
	dsn := cfg.DBConnectionString
	if cfg.IsDevelopment() && !strings.Contains(dsn, "sslmode") {
		dsn = appendParam(dsn, "sslmode=disable")
	}
	return dsn
}

func appendParam(dsn, param string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		if strings.Contains(dsn, "?") {
			return dsn + "&" + param
		}
		return dsn + "?" + param
	}
	return dsn + " " + param
}

// NewPool opens a pgx pool and verifies it with a ping.
func NewPool(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(DSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}
	poolCfg.MaxConns = 25
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	if !cfg.IsDevelopment() {
		poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open db pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	logger.Info().
		Str("host", poolCfg.ConnConfig.Host).
		Uint16("port", poolCfg.ConnConfig.Port).
		Msg("Database connection successful")
	return pool, nil
}
