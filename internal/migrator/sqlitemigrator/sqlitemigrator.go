// Package sqlitemigrator is the SQLite ConnAdapter, used for local
// development and the test suite's integration-style tests. It is grounded
// on original_source/src/migrator.rs's SQLite branch: a no-op lock (the
// engine's single-writer semantics already serialise writers) and an
// AUTOINCREMENT surrogate key with a CURRENT_TIMESTAMP default.
package sqlitemigrator

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	_ "modernc.org/sqlite"

	"github.com/dbschema/migrator/internal/migrator"
)

const tableName = "_sqlx_migrator_migrations"

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Adapter implements migrator.ConnAdapter against a *sql.DB opened with the
// modernc.org/sqlite driver.
type Adapter struct {
	db *sql.DB
}

// Open opens a SQLite database at path (use ":memory:" for an ephemeral
// test database) and returns an Adapter over it.
func Open(path string) (*Adapter, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite only tolerates one writer; the no-op Lock below relies on
	// this, so force a single connection rather than a pool.
	db.SetMaxOpenConns(1)
	return &Adapter{db: db}, nil
}

// New wraps an already-open *sql.DB.
func New(db *sql.DB) *Adapter {
	return &Adapter{db: db}
}

func (a *Adapter) Close() error {
	return a.db.Close()
}

func (a *Adapter) EnsureTable(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+tableName+` (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		app TEXT NOT NULL,
		name TEXT NOT NULL,
		applied_time TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (app, name)
	)`)
	return err
}

func (a *Adapter) DropTable(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx, `DROP TABLE IF EXISTS `+tableName)
	return err
}

func (a *Adapter) FetchApplied(ctx context.Context) ([]migrator.AppliedRecord, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT id, app, name, applied_time FROM `+tableName)
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
	_, err = q.ExecContext(ctx, `INSERT INTO `+tableName+`(app, name) VALUES (?, ?)`, id.App, id.Name)
	return err
}

func (a *Adapter) Delete(ctx context.Context, handle migrator.Handle, id migrator.ID) error {
	q, err := asQuerier(handle)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `DELETE FROM `+tableName+` WHERE app = ? AND name = ?`, id.App, id.Name)
	return err
}

func (a *Adapter) WithTransaction(ctx context.Context, fn func(ctx context.Context, handle migrator.Handle) error) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (a *Adapter) WithConnection(ctx context.Context, fn func(ctx context.Context, handle migrator.Handle) error) error {
	conn, err := a.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, conn)
}

// Lock is a no-op: it relies on SQLite's single-writer semantics to
// serialise migration runs. Open limits the pool to one connection; a
// *sql.DB passed to New keeps whatever connection limit the caller set.
func (a *Adapter) Lock(ctx context.Context) error { return nil }

// Unlock is a no-op for the same reason.
func (a *Adapter) Unlock(ctx context.Context) error { return nil }

func asQuerier(handle migrator.Handle) (querier, error) {
	q, ok := handle.(querier)
	if !ok {
		return nil, errUnexpectedHandle
	}
	return q, nil
}

var errUnexpectedHandle = errors.New("sqlitemigrator: handle is not a *sql.Tx or *sql.Conn")
