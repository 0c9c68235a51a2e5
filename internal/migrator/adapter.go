package migrator

import (
	"context"
	"time"
)

// AppliedRecord is one row of the tracking table.
type AppliedRecord struct {
	ID          string
	App         string
	Name        string
	AppliedTime time.Time
}

// TrackingStore persists the set of applied migrations in the target
// database. Implementations are dialect-specific SQL behind this uniform
// interface.
type TrackingStore interface {
	// EnsureTable creates the tracking table if it does not already exist.
	EnsureTable(ctx context.Context) error

	// DropTable drops the tracking table if present.
	DropTable(ctx context.Context) error

	// FetchApplied returns every tracked (app, name) row.
	FetchApplied(ctx context.Context) ([]AppliedRecord, error)

	// Insert writes one row using the caller's execution handle, so it
	// can participate in the migration's transaction when Atomic is true.
	Insert(ctx context.Context, handle Handle, id ID) error

	// Delete removes the row matching id using the caller's handle.
	Delete(ctx context.Context, handle Handle, id ID) error
}

// LockProvider acquires and releases a database-wide advisory lock derived
// deterministically from the database name. Lock/Unlock must be paired
// around every ApplyAll/RevertAll; single-migration Apply/Revert invoked
// directly does not take the lock.
type LockProvider interface {
	Lock(ctx context.Context) error
	Unlock(ctx context.Context) error
}

// ConnAdapter is the dialect-specific capability set the Executor drives:
// transactional and non-transactional execution of Operations plus the
// TrackingStore and LockProvider for one target database.
type ConnAdapter interface {
	TrackingStore
	LockProvider

	// WithTransaction runs fn with a Handle backed by a new transaction.
	// fn's returned error aborts the transaction; otherwise it is
	// committed after fn returns.
	WithTransaction(ctx context.Context, fn func(ctx context.Context, handle Handle) error) error

	// WithConnection runs fn with a Handle backed by a bare pooled
	// connection (no transaction).
	WithConnection(ctx context.Context, fn func(ctx context.Context, handle Handle) error) error
}
