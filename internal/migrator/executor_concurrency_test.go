package migrator

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/dbschema/migrator/internal/migrator/migratortest"
)

// P7: under concurrent ApplyAll invocations against the same database, the
// total number of Operation.Up invocations equals the number of Operations
// a single invocation would apply — the lock prevents duplicate
// application even though every caller races to generate its own plan.
func TestEngine_ConcurrentApplyAllAppliesOnce(t *testing.T) {
	var upCount int64
	reg := NewRegistry()
	m := New("main", "only", Operation{
		Name: "op",
		Up: func(ctx context.Context, handle Handle) error {
			atomic.AddInt64(&upCount, 1)
			return nil
		},
	})
	reg.Add(m)

	adapter := migratortest.New()
	engine := NewEngine(reg, adapter)

	var g errgroup.Group
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			return engine.ApplyAll(context.Background())
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, int64(1), atomic.LoadInt64(&upCount), "operation must run exactly once despite 8 concurrent callers")
	assert.Len(t, adapter.Applied(), 1)
}
