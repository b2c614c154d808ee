// Package database provides PostgreSQL and Redis connectivity and the
// embedded schema migrations.
package database

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ekaya-inc/assembly-factory/pkg/config"
)

// applicationName tags factory sessions in pg_stat_activity.
const applicationName = "assembly-factory"

// DB wraps a pgxpool connection pool.
type DB struct {
	*pgxpool.Pool
}

// Config holds pool settings. Zero values select the defaults below.
type Config struct {
	URL              string
	MaxConnections   int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	StatementTimeout time.Duration
}

// ConfigFrom builds pool settings from the application's database section.
func ConfigFrom(c *config.DatabaseConfig) *Config {
	return &Config{
		URL:            c.ConnectionString(),
		MaxConnections: c.MaxConnections,
	}
}

// NewConnection opens the pool and pings it once so that a bad URL or an
// unreachable server fails at startup rather than on the first request.
func NewConnection(ctx context.Context, cfg *Config) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = valueOr(cfg.MaxConnections, 25)
	poolConfig.MaxConnLifetime = valueOr(cfg.MaxConnLifetime, time.Hour)
	poolConfig.MaxConnIdleTime = valueOr(cfg.MaxConnIdleTime, 30*time.Minute)

	rt := poolConfig.ConnConfig.RuntimeParams
	rt["application_name"] = applicationName
	// Assembly queries touch a handful of rows; anything slower is stuck.
	timeout := valueOr(cfg.StatementTimeout, 15*time.Second)
	rt["statement_timeout"] = strconv.FormatInt(timeout.Milliseconds(), 10)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Check pings the database with a short timeout for the health endpoint.
func (db *DB) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return db.Pool.Ping(ctx)
}

// Close closes the connection pool. Safe on a nil DB.
func (db *DB) Close() {
	if db == nil || db.Pool == nil {
		return
	}
	db.Pool.Close()
}

func valueOr[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
