package migrator

// Registry holds the set of all Migrations known to the engine and
// enforces the closure invariant I5: every member of a registered
// Migration's Parents and Replaces is transitively registered too.
//
// RunBefore targets are deliberately not recursively inserted — they are
// assumed to already be present, or to be added independently. A missing
// RunBefore target is a no-op back-edge as far as the planner is concerned.
// This asymmetry lets callers build small partial registries for tests
// without dragging in everything downstream of them.
//
// Internally the registry stores dependency relations as sets of (app,
// name) keys rather than nested Migration values, so planning never has to
// compare or hash anything but plain IDs.
type Registry struct {
	byID      map[ID]Migration
	parents   map[ID][]ID
	replaces  map[ID][]ID
	runBefore map[ID][]ID
	order     []ID // insertion order, for deterministic planning
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:      make(map[ID]Migration),
		parents:   make(map[ID][]ID),
		replaces:  make(map[ID][]ID),
		runBefore: make(map[ID][]ID),
	}
}

// Add inserts a Migration into the registry. Registration is idempotent on
// identity: if a migration with the same (app, name) was already added,
// Add returns immediately without recursing into its parents/replaces.
// Otherwise it recursively adds every member of Parents and Replaces.
func (r *Registry) Add(m Migration) {
	id := m.id()
	if _, exists := r.byID[id]; exists {
		return
	}
	r.byID[id] = m
	r.order = append(r.order, id)

	for _, p := range m.Parents {
		r.parents[id] = append(r.parents[id], p.id())
	}
	for _, rep := range m.Replaces {
		r.replaces[id] = append(r.replaces[id], rep.id())
	}
	for _, t := range m.RunBefore {
		r.runBefore[id] = append(r.runBefore[id], t)
	}

	// The exists-check above is what keeps mutually-referencing
	// migrations from recursing forever.
	for _, p := range m.Parents {
		r.Add(p)
	}
	for _, rep := range m.Replaces {
		r.Add(rep)
	}
}

// AddAll registers each Migration in order.
func (r *Registry) AddAll(migrations ...Migration) {
	for _, m := range migrations {
		r.Add(m)
	}
}

// Get returns the Migration registered under id, if any.
func (r *Registry) Get(id ID) (Migration, bool) {
	m, ok := r.byID[id]
	return m, ok
}

// All returns every registered Migration's identity in insertion order.
func (r *Registry) All() []ID {
	out := make([]ID, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered migrations.
func (r *Registry) Len() int {
	return len(r.order)
}

// parentsOf returns the registered parent IDs of id.
func (r *Registry) parentsOf(id ID) []ID {
	return r.parents[id]
}

// replacesOf returns the IDs id replaces.
func (r *Registry) replacesOf(id ID) []ID {
	return r.replaces[id]
}

// runBeforeOf returns the run-before targets declared by id.
func (r *Registry) runBeforeOf(id ID) []ID {
	return r.runBefore[id]
}
