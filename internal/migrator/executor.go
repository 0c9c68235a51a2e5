package migrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/dbschema/migrator/internal/logging"
)

// Engine drives a Registry's Plans against a database through a
// ConnAdapter, coordinating the lock, transactions, Operations, and the
// tracking store.
type Engine struct {
	registry *Registry
	adapter  ConnAdapter
	logger   *logging.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger attaches a logger; plan generation, lock acquisition/release,
// and per-migration apply/revert are logged at debug/info level.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine builds an Engine over the given Registry and adapter.
func NewEngine(registry *Registry, adapter ConnAdapter, opts ...Option) *Engine {
	e := &Engine{registry: registry, adapter: adapter}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) log() *logging.Logger {
	if e.logger != nil {
		return e.logger
	}
	return logging.NoOp()
}

// AppliedSet fetches the currently applied migrations from the tracking
// store as a lookup set, ensuring the table exists first.
func (e *Engine) AppliedSet(ctx context.Context) (map[ID]bool, error) {
	if err := e.adapter.EnsureTable(ctx); err != nil {
		return nil, dbFail("ensure_table", err)
	}
	rows, err := e.adapter.FetchApplied(ctx)
	if err != nil {
		return nil, dbFail("fetch_applied", err)
	}
	applied := make(map[ID]bool, len(rows))
	for _, r := range rows {
		applied[ID{App: r.App, Name: r.Name}] = true
	}
	return applied, nil
}

// Plan generates a Plan for req against the engine's registry and the
// database's current applied set. The planner itself does no further I/O.
func (e *Engine) Plan(ctx context.Context, req PlanRequest) (Plan, error) {
	applied, err := e.AppliedSet(ctx)
	if err != nil {
		return nil, err
	}
	e.log().Debug("generating migration plan", zap.Int("mode", int(req.Mode)), zap.String("app", req.App), zap.String("name", req.Name))
	return GeneratePlan(e.registry, applied, req)
}

func (e *Engine) mustGet(id ID) (Migration, error) {
	m, ok := e.registry.Get(id)
	if !ok {
		return Migration{}, fmt.Errorf("migrator: plan referenced unregistered migration %s", id)
	}
	return m, nil
}

// ApplyMigration applies a single migration and records it in the tracking
// store. It does not take the cross-process lock; callers invoking it
// directly (outside ApplyAll) are responsible for their own coordination.
func (e *Engine) ApplyMigration(ctx context.Context, id ID) error {
	m, err := e.mustGet(id)
	if err != nil {
		return err
	}
	e.log().Info("applying migration", zap.String("app", m.App), zap.String("name", m.Name))

	run := func(ctx context.Context, handle Handle) error {
		for _, op := range m.Operations {
			if op.Up == nil {
				continue
			}
			if err := op.Up(ctx, handle); err != nil {
				return dbFail(fmt.Sprintf("apply %s.%s operation %q", m.App, m.Name, op.Name), err)
			}
		}
		if err := e.adapter.Insert(ctx, handle, id); err != nil {
			return dbFail("insert tracking row", err)
		}
		return nil
	}

	if m.Atomic {
		return e.adapter.WithTransaction(ctx, run)
	}
	return e.adapter.WithConnection(ctx, run)
}

// RevertMigration reverts a single migration, traversing its Operations in
// reverse, and deletes its tracking row.
func (e *Engine) RevertMigration(ctx context.Context, id ID) error {
	m, err := e.mustGet(id)
	if err != nil {
		return err
	}
	e.log().Info("reverting migration", zap.String("app", m.App), zap.String("name", m.Name))

	run := func(ctx context.Context, handle Handle) error {
		for i := len(m.Operations) - 1; i >= 0; i-- {
			op := m.Operations[i]
			if op.Down == nil {
				continue
			}
			if err := op.Down(ctx, handle); err != nil {
				return dbFail(fmt.Sprintf("revert %s.%s operation %q", m.App, m.Name, op.Name), err)
			}
		}
		if err := e.adapter.Delete(ctx, handle, id); err != nil {
			return dbFail("delete tracking row", err)
		}
		return nil
	}

	if m.Atomic {
		return e.adapter.WithTransaction(ctx, run)
	}
	return e.adapter.WithConnection(ctx, run)
}

// ApplyAll acquires the cross-process lock, generates an untargeted Apply
// plan, and applies each migration in order. If any single migration fails
// the operation stops there: already-committed migrations remain applied,
// the failing one is not recorded, and the lock is released before the
// error is returned.
func (e *Engine) ApplyAll(ctx context.Context) error {
	return e.withLock(ctx, func(ctx context.Context) error {
		plan, err := e.Plan(ctx, PlanRequest{Mode: Apply})
		if err != nil {
			return err
		}
		for _, id := range plan {
			if err := e.ApplyMigration(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// RevertAll acquires the cross-process lock, generates an untargeted
// Revert plan, and reverts each migration in order.
func (e *Engine) RevertAll(ctx context.Context) error {
	return e.withLock(ctx, func(ctx context.Context) error {
		plan, err := e.Plan(ctx, PlanRequest{Mode: Revert})
		if err != nil {
			return err
		}
		for _, id := range plan {
			if err := e.RevertMigration(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// ApplyTo acquires the lock and applies migrations up to and including the
// named target (app, and optionally name).
func (e *Engine) ApplyTo(ctx context.Context, app, name string) error {
	return e.withLock(ctx, func(ctx context.Context) error {
		plan, err := e.Plan(ctx, PlanRequest{Mode: Apply, App: app, Name: name})
		if err != nil {
			return err
		}
		for _, id := range plan {
			if err := e.ApplyMigration(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// RevertTo acquires the lock and reverts migrations back through the named
// target (app, and optionally name).
func (e *Engine) RevertTo(ctx context.Context, app, name string) error {
	return e.withLock(ctx, func(ctx context.Context) error {
		plan, err := e.Plan(ctx, PlanRequest{Mode: Revert, App: app, Name: name})
		if err != nil {
			return err
		}
		for _, id := range plan {
			if err := e.RevertMigration(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// MarkApplied writes a tracking row for id without running its Operations,
// for recovering from a migration applied out-of-band.
func (e *Engine) MarkApplied(ctx context.Context, id ID) error {
	if _, err := e.mustGet(id); err != nil {
		return err
	}
	return e.adapter.WithConnection(ctx, func(ctx context.Context, handle Handle) error {
		if err := e.adapter.Insert(ctx, handle, id); err != nil {
			return dbFail("insert tracking row", err)
		}
		return nil
	})
}

// MarkUnapplied deletes id's tracking row without running its Operations.
func (e *Engine) MarkUnapplied(ctx context.Context, id ID) error {
	return e.adapter.WithConnection(ctx, func(ctx context.Context, handle Handle) error {
		if err := e.adapter.Delete(ctx, handle, id); err != nil {
			return dbFail("delete tracking row", err)
		}
		return nil
	})
}

// DropTrackingTable drops the tracking table if present, for tests that
// want a clean slate.
func (e *Engine) DropTrackingTable(ctx context.Context) error {
	if err := e.adapter.DropTable(ctx); err != nil {
		return dbFail("drop_table", err)
	}
	return nil
}

func (e *Engine) withLock(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := e.adapter.Lock(ctx); err != nil {
		return dbFail("lock", err)
	}
	e.log().Debug("acquired migration lock")
	err := fn(ctx)
	if unlockErr := e.adapter.Unlock(ctx); unlockErr != nil {
		// A failed release is logged but never masks fn's error.
		e.log().Warn("failed to release migration lock", zap.Error(unlockErr))
	} else {
		e.log().Debug("released migration lock")
	}
	return err
}
