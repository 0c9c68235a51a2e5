package migrator

// Mode selects which kind of Plan to generate.
type Mode int

const (
	// List produces every registered migration with no filtering.
	List Mode = iota
	// Apply retains only migrations not yet applied.
	Apply
	// Revert retains only applied migrations, reversed.
	Revert
)

// PlanRequest describes what kind of Plan to generate and, optionally, a
// target to truncate it to.
type PlanRequest struct {
	Mode Mode

	// App, if set, truncates the plan to end at the rightmost migration
	// matching this app (and Name, if also set).
	App string

	// Name further narrows App's truncation target. Name without App is
	// invalid.
	Name string
}

// Validate checks the request itself, independent of any registry.
func (p PlanRequest) Validate() error {
	if p.Name != "" && p.App == "" {
		return &AppNameRequiredError{}
	}
	return nil
}

// Plan is the ordered list of migration identities the Executor will act
// upon for a given request.
type Plan []ID

// GeneratePlan produces the linear execution Plan for req, given the
// registry's graph and the set of currently applied migrations.
//
// The algorithm proceeds in five steps:
//  1. build a reverse run_before index,
//  2. iteratively emit migrations whose parents and run_before
//     predecessors are already emitted, failing if a full pass adds
//     nothing (the sole cycle-detection point),
//  3. resolve replacement conflicts,
//  4. filter by mode,
//  5. truncate to the requested target.
func GeneratePlan(reg *Registry, applied map[ID]bool, req PlanRequest) (Plan, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	all := reg.All()

	// Step 1: reverse run_before index. precedes[t] lists migrations that
	// must already be in the plan before t can be emitted.
	precedes := make(map[ID][]ID)
	for _, id := range all {
		for _, t := range reg.runBeforeOf(id) {
			precedes[t] = append(precedes[t], id)
		}
	}

	// Step 2: iterative topological emission, in registry (insertion)
	// order for determinism.
	inPlan := make(map[ID]bool, len(all))
	plan := make(Plan, 0, len(all))

	for len(plan) != len(all) {
		before := len(plan)
		for _, id := range all {
			if inPlan[id] {
				continue
			}
			if !allIn(inPlan, reg.parentsOf(id)) {
				continue
			}
			if !allIn(inPlan, precedes[id]) {
				continue
			}
			plan = append(plan, id)
			inPlan[id] = true
		}
		if len(plan) == before {
			remaining := make([]ID, 0, len(all)-len(plan))
			for _, id := range all {
				if !inPlan[id] {
					remaining = append(remaining, id)
				}
			}
			return nil, &PlanConstructionFailureError{Remaining: remaining}
		}
	}

	// Step 3: replacement resolution.
	for _, id := range append(Plan{}, plan...) {
		replaces := reg.replacesOf(id)
		if len(replaces) == 0 {
			continue
		}
		anyReplacedApplied := false
		var appliedReplaced ID
		for _, r := range replaces {
			if applied[r] {
				anyReplacedApplied = true
				appliedReplaced = r
				break
			}
		}
		if anyReplacedApplied {
			if applied[id] {
				return nil, &ConflictingReplacementError{Replacer: id, Replaced: appliedReplaced}
			}
			plan = removeID(plan, id)
		} else {
			for _, r := range replaces {
				plan = removeID(plan, r)
			}
		}
	}

	// Step 4: mode filter.
	switch req.Mode {
	case Apply:
		plan = filterPlan(plan, func(id ID) bool { return !applied[id] })
	case Revert:
		plan = filterPlan(plan, func(id ID) bool { return applied[id] })
		reversePlan(plan)
	case List:
		// no filtering
	}

	// Step 5: target truncation.
	if req.App != "" {
		pos := -1
		for i := len(plan) - 1; i >= 0; i-- {
			if plan[i].App != req.App {
				continue
			}
			if req.Name != "" && plan[i].Name != req.Name {
				continue
			}
			pos = i
			break
		}
		if pos == -1 {
			if req.Name != "" && anyAppMatches(plan, req.App) {
				return nil, &UnknownMigrationError{App: req.App, Name: req.Name}
			}
			return nil, &UnknownAppError{App: req.App}
		}
		plan = plan[:pos+1]
	}

	return plan, nil
}

func allIn(set map[ID]bool, ids []ID) bool {
	for _, id := range ids {
		if !set[id] {
			return false
		}
	}
	return true
}

func removeID(plan Plan, target ID) Plan {
	out := plan[:0:0]
	for _, id := range plan {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}

func filterPlan(plan Plan, keep func(ID) bool) Plan {
	out := plan[:0:0]
	for _, id := range plan {
		if keep(id) {
			out = append(out, id)
		}
	}
	return out
}

func reversePlan(plan Plan) {
	for i, j := 0, len(plan)-1; i < j; i, j = i+1, j-1 {
		plan[i], plan[j] = plan[j], plan[i]
	}
}

func anyAppMatches(plan Plan, app string) bool {
	for _, id := range plan {
		if id.App == app {
			return true
		}
	}
	return false
}
