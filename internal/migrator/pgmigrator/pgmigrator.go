// Package pgmigrator is the Postgres ConnAdapter, grounded on
// internal/logstore/pglogstore's pgxpool usage and on
// original_source/src/postgres/migrator.rs for the tracking table's SQL
// and the advisory-lock semantics.
package pgmigrator

import (
	"context"
	"errors"
	"hash/crc32"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dbschema/migrator/internal/migrator"
)

var errUnexpectedHandle = errors.New("pgmigrator: handle is not a pgx transaction or connection")

const tableName = "_sqlx_migrator_migrations"

// querier is the subset of pgxpool.Pool, pgxpool.Conn, and pgx.Tx that the
// adapter needs; a migrator.Handle is always one of these three.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Adapter implements migrator.ConnAdapter against a *pgxpool.Pool.
type Adapter struct {
	pool   *pgxpool.Pool
	dbName string

	// lockConn holds the dedicated connection a session-scoped advisory
	// lock lives on; Postgres releases such locks when the connection
	// returns to the pool, so Lock must keep this connection checked out
	// until Unlock.
	lockConn *pgxpool.Conn
}

// New returns an Adapter for pool. dbName is the database name the
// advisory lock id is derived from; callers typically pass
// pool.Config().ConnConfig.Database.
func New(pool *pgxpool.Pool, dbName string) *Adapter {
	return &Adapter{pool: pool, dbName: dbName}
}

func lockID(dbName string) int64 {
	return int64(crc32.ChecksumIEEE([]byte(dbName)))
}

func (a *Adapter) EnsureTable(ctx context.Context) error {
	_, err := a.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS `+tableName+` (
		id INT PRIMARY KEY NOT NULL GENERATED ALWAYS AS IDENTITY,
		app TEXT NOT NULL,
		name TEXT NOT NULL,
		applied_time TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (app, name)
	)`)
	return err
}

func (a *Adapter) DropTable(ctx context.Context) error {
	_, err := a.pool.Exec(ctx, `DROP TABLE IF EXISTS `+tableName)
	return err
}

func (a *Adapter) FetchApplied(ctx context.Context) ([]migrator.AppliedRecord, error) {
	rows, err := a.pool.Query(ctx, `SELECT id, app, name, applied_time FROM `+tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []migrator.AppliedRecord
	for rows.Next() {
		var (
			id  int64
			rec migrator.AppliedRecord
		)
		if err := rows.Scan(&id, &rec.App, &rec.Name, &rec.AppliedTime); err != nil {
			return nil, err
		}
		rec.ID = strconv.FormatInt(id, 10)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (a *Adapter) Insert(ctx context.Context, handle migrator.Handle, id migrator.ID) error {
	q, err := asQuerier(handle)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `INSERT INTO `+tableName+`(app, name) VALUES ($1, $2)`, id.App, id.Name)
	return err
}

func (a *Adapter) Delete(ctx context.Context, handle migrator.Handle, id migrator.ID) error {
	q, err := asQuerier(handle)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `DELETE FROM `+tableName+` WHERE app = $1 AND name = $2`, id.App, id.Name)
	return err
}

func (a *Adapter) WithTransaction(ctx context.Context, fn func(ctx context.Context, handle migrator.Handle) error) error {
	tx, err := a.pool.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func (a *Adapter) WithConnection(ctx context.Context, fn func(ctx context.Context, handle migrator.Handle) error) error {
	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	return fn(ctx, conn)
}

func (a *Adapter) Lock(ctx context.Context) error {
	conn, err := a.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", lockID(a.dbName)); err != nil {
		conn.Release()
		return err
	}
	a.lockConn = conn
	return nil
}

func (a *Adapter) Unlock(ctx context.Context) error {
	conn := a.lockConn
	a.lockConn = nil
	if conn == nil {
		return nil
	}
	defer conn.Release()
	_, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", lockID(a.dbName))
	return err
}

func asQuerier(handle migrator.Handle) (querier, error) {
	q, ok := handle.(querier)
	if !ok {
		return nil, errUnexpectedHandle
	}
	return q, nil
}
