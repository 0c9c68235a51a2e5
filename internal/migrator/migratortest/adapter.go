// Package migratortest provides an in-memory migrator.ConnAdapter fake for
// fast planner/executor unit tests that don't need a live database.
package migratortest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dbschema/migrator/internal/migrator"
)

// Adapter is an in-memory fake implementing migrator.ConnAdapter. It is
// safe for concurrent use, so it can also back the lock-serialisation test
// for property P7.
type Adapter struct {
	mu sync.Mutex

	tableExists bool
	applied     map[migrator.ID]migrator.AppliedRecord
	nextID      int

	lockMu    sync.Mutex // held between Lock and Unlock, simulating a real advisory lock
	LockCalls int
}

// New returns an empty Adapter.
func New() *Adapter {
	return &Adapter{applied: make(map[migrator.ID]migrator.AppliedRecord)}
}

// Applied returns a snapshot of the tracking rows, for assertions.
func (a *Adapter) Applied() map[migrator.ID]migrator.AppliedRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[migrator.ID]migrator.AppliedRecord, len(a.applied))
	for k, v := range a.applied {
		out[k] = v
	}
	return out
}

// SeedApplied marks ids as already applied, bypassing EnsureTable.
func (a *Adapter) SeedApplied(ids ...migrator.ID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tableExists = true
	for _, id := range ids {
		a.nextID++
		a.applied[id] = migrator.AppliedRecord{App: id.App, Name: id.Name, AppliedTime: time.Now()}
	}
}

func (a *Adapter) EnsureTable(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tableExists = true
	return nil
}

func (a *Adapter) DropTable(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tableExists = false
	a.applied = make(map[migrator.ID]migrator.AppliedRecord)
	return nil
}

func (a *Adapter) FetchApplied(ctx context.Context) ([]migrator.AppliedRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]migrator.AppliedRecord, 0, len(a.applied))
	for _, rec := range a.applied {
		out = append(out, rec)
	}
	return out, nil
}

// handle is the fake execution handle passed to Operations. atomic is true
// for WithTransaction handles, staging writes until commit; false for
// WithConnection handles, writing straight through.
type handle struct {
	adapter *Adapter
	staged  map[migrator.ID]*migrator.AppliedRecord // nil record means delete
	atomic  bool
}

func (a *Adapter) Insert(ctx context.Context, h migrator.Handle, id migrator.ID) error {
	hd, ok := h.(*handle)
	if !ok {
		return errBadHandle
	}
	rec := migrator.AppliedRecord{App: id.App, Name: id.Name, AppliedTime: time.Now()}
	if hd.atomic {
		hd.staged[id] = &rec
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextID++
	a.applied[id] = rec
	return nil
}

func (a *Adapter) Delete(ctx context.Context, h migrator.Handle, id migrator.ID) error {
	hd, ok := h.(*handle)
	if !ok {
		return errBadHandle
	}
	if hd.atomic {
		hd.staged[id] = nil
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.applied, id)
	return nil
}

func (a *Adapter) WithTransaction(ctx context.Context, fn func(ctx context.Context, handle migrator.Handle) error) error {
	h := &handle{adapter: a, staged: make(map[migrator.ID]*migrator.AppliedRecord), atomic: true}
	if err := fn(ctx, h); err != nil {
		return err // rollback: staged writes are simply discarded
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, rec := range h.staged {
		if rec == nil {
			delete(a.applied, id)
			continue
		}
		a.applied[id] = *rec
	}
	return nil
}

func (a *Adapter) WithConnection(ctx context.Context, fn func(ctx context.Context, handle migrator.Handle) error) error {
	h := &handle{adapter: a, atomic: false}
	return fn(ctx, h)
}

func (a *Adapter) Lock(ctx context.Context) error {
	a.lockMu.Lock()
	a.mu.Lock()
	a.LockCalls++
	a.mu.Unlock()
	return nil
}

func (a *Adapter) Unlock(ctx context.Context) error {
	a.lockMu.Unlock()
	return nil
}

var errBadHandle = errors.New("migratortest: handle not produced by this adapter")
