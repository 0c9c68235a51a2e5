// Package migrator implements a dependency-graph schema migration engine.
//
// A Migration declares its dependencies on other Migrations (Parents),
// migrations it must precede (RunBefore), and migrations it supersedes
// (Replaces). The Registry holds the full graph; the Planner linearises it
// into an ordered Plan; the Executor drives that Plan against a database
// through an Adapter, under a cross-process Lock.
package migrator

import "context"

// Handle is a database execution handle: either a pooled connection or an
// open transaction. Operations never know which they got.
type Handle interface{}

// Operation is a single reversible unit of work inside a Migration.
// Operations are stateless from the engine's point of view; it never
// inspects their internals.
type Operation struct {
	// Name is used only in logging and error messages.
	Name string

	// Up applies the operation using the given handle.
	Up func(ctx context.Context, handle Handle) error

	// Down reverts the operation using the given handle.
	Down func(ctx context.Context, handle Handle) error
}

// ID is a Migration's primary key: the (app, name) pair. Equality, hashing
// via map keys, and the tracking table's unique constraint are all on this
// pair.
type ID struct {
	App  string
	Name string
}

func (id ID) String() string {
	return id.App + "." + id.Name
}

// Migration is a named, app-scoped node in the migration graph.
//
// Parents and Replaces carry full Migration values, not just identifiers:
// Registry.Add recurses into them to enforce the closure invariant at
// registration time, walking owned migration objects. RunBefore carries
// identifiers only, since those targets are never recursively registered.
type Migration struct {
	App  string
	Name string

	// Parents must be applied before this migration.
	Parents []Migration

	// RunBefore declares that this migration must precede the named
	// migrations; equivalent to adding a reverse Parents edge on each.
	RunBefore []ID

	// Replaces is the set of older migrations this one supersedes.
	// Applying this migration is semantically equivalent to applying all
	// of them.
	Replaces []Migration

	// Operations run in order on Apply, in reverse on Revert.
	Operations []Operation

	// Atomic, when true (the default), runs Apply/Revert's Operations and
	// the tracking-table write inside a single transaction. When false,
	// each step runs on a bare connection.
	Atomic bool
}

// id returns the migration's (app, name) identity.
func (m Migration) id() ID {
	return ID{App: m.App, Name: m.Name}
}

// New constructs a Migration with Atomic defaulted to true.
func New(app, name string, operations ...Operation) Migration {
	return Migration{
		App:        app,
		Name:       name,
		Operations: operations,
		Atomic:     true,
	}
}

// WithParents returns a copy of m with the given parent migrations added.
func (m Migration) WithParents(parents ...Migration) Migration {
	m.Parents = append(append([]Migration{}, m.Parents...), parents...)
	return m
}

// WithRunBefore returns a copy of m with the given run-before targets added.
func (m Migration) WithRunBefore(targets ...ID) Migration {
	m.RunBefore = append(append([]ID{}, m.RunBefore...), targets...)
	return m
}

// WithReplaces returns a copy of m declaring it supersedes the given
// migrations.
func (m Migration) WithReplaces(replaced ...Migration) Migration {
	m.Replaces = append(append([]Migration{}, m.Replaces...), replaced...)
	return m
}

// NonAtomic returns a copy of m with Atomic set to false.
func (m Migration) NonAtomic() Migration {
	m.Atomic = false
	return m
}
