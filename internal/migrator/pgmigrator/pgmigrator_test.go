package pgmigrator

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbschema/migrator/internal/migrator"
	"github.com/dbschema/migrator/internal/util/testutil"
)

// connectTest dials the database named by MIGRATOR_TEST_POSTGRES_URL and
// skips the test if it isn't set, since this package's tests are the only
// ones in the module that need a live Postgres server.
func connectTest(t *testing.T) *Adapter {
	t.Helper()
	testutil.Integration(t)

	url := os.Getenv("MIGRATOR_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("MIGRATOR_TEST_POSTGRES_URL not set")
	}

	ctx := context.Background()
	cfg, err := pgxpool.ParseConfig(url)
	require.NoError(t, err)
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	a := New(pool, cfg.ConnConfig.Database)
	require.NoError(t, a.DropTable(ctx))
	t.Cleanup(func() { _ = a.DropTable(context.Background()) })
	return a
}

func TestAdapter_EnsureTableAndFetchApplied(t *testing.T) {
	ctx := context.Background()
	a := connectTest(t)

	require.NoError(t, a.EnsureTable(ctx))
	require.NoError(t, a.EnsureTable(ctx))

	rows, err := a.FetchApplied(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestAdapter_AdvisoryLockSerialisesAcrossConnections(t *testing.T) {
	ctx := context.Background()
	a := connectTest(t)

	require.NoError(t, a.Lock(ctx))
	require.NotNil(t, a.lockConn, "Lock must keep its connection checked out")

	// A second session on the same pool must be able to acquire the lock
	// only after the first releases it; we don't block here (that would
	// hang a unit test), we probe with pg_try_advisory_lock instead.
	other, err := a.pool.Acquire(ctx)
	require.NoError(t, err)
	defer other.Release()

	var got bool
	require.NoError(t, other.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", lockID(a.dbName)).Scan(&got))
	assert.False(t, got, "a second session must not take a held advisory lock")

	require.NoError(t, a.Unlock(ctx))
	assert.Nil(t, a.lockConn)

	require.NoError(t, other.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", lockID(a.dbName)).Scan(&got))
	assert.True(t, got, "the lock must be free once Unlock returns")
	_, err = other.Exec(ctx, "SELECT pg_advisory_unlock($1)", lockID(a.dbName))
	require.NoError(t, err)
}

func TestAdapter_InsertDeleteRoundTrip(t *testing.T) {
	ctx := context.Background()
	a := connectTest(t)
	require.NoError(t, a.EnsureTable(ctx))

	id := migrator.ID{App: "main", Name: "m1"}
	require.NoError(t, a.WithTransaction(ctx, func(ctx context.Context, handle migrator.Handle) error {
		return a.Insert(ctx, handle, id)
	}))

	rows, err := a.FetchApplied(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "m1", rows[0].Name)

	require.NoError(t, a.WithTransaction(ctx, func(ctx context.Context, handle migrator.Handle) error {
		return a.Delete(ctx, handle, id)
	}))

	rows, err = a.FetchApplied(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
