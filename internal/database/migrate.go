package database

import (
	"fmt"
	"net/url"

	"pitchside/internal/config"
	"pitchside/migrations"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// NewMigrator returns a migrate instance over the embedded schema files.
func NewMigrator(cfg *config.Config) (*migrate.Migrate, error) {
	dbURL, err := MigrationURL(DSN(cfg))
	if err != nil {
		return nil, err
	}
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dbURL)
	if err != nil {
		return nil, fmt.Errorf("init migrate: %w", err)
	}
	return m, nil
}

// MigrationURL rewrites a postgres URL to the pgx5 scheme the migrate driver
// registers. Keyword/value DSNs are not supported.
func MigrationURL(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse db url: %w", err)
	}
	switch u.Scheme {
	case "postgres", "postgresql":
		u.Scheme = "pgx5"
	case "pgx5":
	default:
		return "", fmt.Errorf("migrations need a postgres:// url, got scheme %q", u.Scheme)
	}
	return u.String(), nil
}
