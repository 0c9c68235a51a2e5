package config

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dbschema/migrator/internal/migrator/pgmigrator"
	"github.com/dbschema/migrator/internal/migrator/sqlitemigrator"
)

// ConnectPostgres opens a pgxpool.Pool from c.PostgresURL and wraps it in a
// pgmigrator.Adapter. Connection errors are sanitized before being
// returned, since the driver's error messages otherwise echo the DSN
// (including credentials) verbatim.
func (c *Config) ConnectPostgres(ctx context.Context) (*pgmigrator.Adapter, *pgxpool.Pool, error) {
	if c.PostgresURL == "" {
		return nil, nil, fmt.Errorf("config: MIGRATOR_POSTGRES_URL is not set")
	}

	poolCfg, err := pgxpool.ParseConfig(c.PostgresURL)
	if err != nil {
		return nil, nil, sanitizeConnectionError(err, c.PostgresURL)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, sanitizeConnectionError(err, c.PostgresURL)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, sanitizeConnectionError(err, c.PostgresURL)
	}

	return pgmigrator.New(pool, poolCfg.ConnConfig.Database), pool, nil
}

// ConnectSQLite opens c.SQLitePath and wraps it in a sqlitemigrator.Adapter.
func (c *Config) ConnectSQLite() (*sqlitemigrator.Adapter, error) {
	if c.SQLitePath == "" {
		return nil, fmt.Errorf("config: MIGRATOR_SQLITE_PATH is not set")
	}
	return sqlitemigrator.Open(c.SQLitePath)
}
