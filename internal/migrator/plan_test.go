package migrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idsOf(plan Plan) []ID { return plan }

// Scenario 1: linear chain.
func TestPlan_LinearChain(t *testing.T) {
	reg := NewRegistry()
	m1 := New("main", "m1")
	m2 := New("main", "m2").WithParents(m1)
	m3 := New("main", "m3").WithParents(m2)
	reg.Add(m3)

	plan, err := GeneratePlan(reg, map[ID]bool{}, PlanRequest{Mode: Apply})
	require.NoError(t, err)
	assert.Equal(t, []ID{
		{App: "main", Name: "m1"},
		{App: "main", Name: "m2"},
		{App: "main", Name: "m3"},
	}, idsOf(plan))

	applied := map[ID]bool{
		{App: "main", Name: "m1"}: true,
		{App: "main", Name: "m2"}: true,
		{App: "main", Name: "m3"}: true,
	}
	revertPlan, err := GeneratePlan(reg, applied, PlanRequest{Mode: Revert})
	require.NoError(t, err)
	assert.Equal(t, []ID{
		{App: "main", Name: "m3"},
		{App: "main", Name: "m2"},
		{App: "main", Name: "m1"},
	}, idsOf(revertPlan))
}

// Scenario 2: diamond dependency.
func TestPlan_Diamond(t *testing.T) {
	reg := NewRegistry()
	a := New("main", "a")
	b := New("main", "b").WithParents(a)
	c := New("main", "c").WithParents(a)
	d := New("main", "d").WithParents(b, c)
	reg.Add(d)

	plan, err := GeneratePlan(reg, map[ID]bool{}, PlanRequest{Mode: List})
	require.NoError(t, err)
	require.Len(t, plan, 4)
	assert.Equal(t, ID{App: "main", Name: "a"}, plan[0])
	assert.Equal(t, ID{App: "main", Name: "d"}, plan[3])

	indexOf := func(name string) int {
		for i, id := range plan {
			if id.Name == name {
				return i
			}
		}
		return -1
	}
	assert.Less(t, indexOf("b"), indexOf("d"))
	assert.Less(t, indexOf("c"), indexOf("d"))

	// Deterministic given fixed registration order.
	plan2, err := GeneratePlan(reg, map[ID]bool{}, PlanRequest{Mode: List})
	require.NoError(t, err)
	assert.Equal(t, plan, plan2)
}

// Scenario 3: run_before as a backward edge.
func TestPlan_RunBeforeBackwardEdge(t *testing.T) {
	reg := NewRegistry()
	x := New("main", "x")
	y := New("main", "y").WithRunBefore(ID{App: "main", Name: "x"})
	reg.AddAll(x, y)

	plan, err := GeneratePlan(reg, map[ID]bool{}, PlanRequest{Mode: List})
	require.NoError(t, err)
	assert.Equal(t, []ID{
		{App: "main", Name: "y"},
		{App: "main", Name: "x"},
	}, idsOf(plan))
}

// Scenario 4: cycle via mixed parent/run_before edges.
func TestPlan_CycleViaMixedEdgesFails(t *testing.T) {
	reg := NewRegistry()
	p := New("main", "p")
	q := New("main", "q").WithParents(p).WithRunBefore(ID{App: "main", Name: "p"})
	reg.AddAll(p, q)

	_, err := GeneratePlan(reg, map[ID]bool{}, PlanRequest{Mode: List})
	require.Error(t, err)
	var pcf *PlanConstructionFailureError
	require.ErrorAs(t, err, &pcf)
}

// Scenario 5: replacement.
func TestPlan_Replacement(t *testing.T) {
	reg := NewRegistry()
	r1 := New("main", "r1")
	r2 := New("main", "r2")
	s := New("main", "s").WithReplaces(r1, r2)
	reg.Add(s)

	plan, err := GeneratePlan(reg, map[ID]bool{}, PlanRequest{Mode: Apply})
	require.NoError(t, err)
	assert.Equal(t, []ID{{App: "main", Name: "s"}}, idsOf(plan))

	applied := map[ID]bool{
		{App: "main", Name: "r1"}: true,
		{App: "main", Name: "r2"}: true,
	}
	plan2, err := GeneratePlan(reg, applied, PlanRequest{Mode: Apply})
	require.NoError(t, err)
	assert.Empty(t, plan2)

	conflicting := map[ID]bool{
		{App: "main", Name: "s"}:  true,
		{App: "main", Name: "r1"}: true,
	}
	_, err = GeneratePlan(reg, conflicting, PlanRequest{Mode: List})
	var cre *ConflictingReplacementError
	require.ErrorAs(t, err, &cre)
}

// Scenario 6: targeted apply and its error cases.
func TestPlan_TargetedApply(t *testing.T) {
	reg := NewRegistry()
	m1 := New("main", "m1")
	m2 := New("main", "m2").WithParents(m1)
	m3 := New("main", "m3").WithParents(m2)
	reg.Add(m3)

	plan, err := GeneratePlan(reg, map[ID]bool{}, PlanRequest{Mode: Apply, App: "main", Name: "m2"})
	require.NoError(t, err)
	assert.Equal(t, []ID{
		{App: "main", Name: "m1"},
		{App: "main", Name: "m2"},
	}, idsOf(plan))

	_, err = GeneratePlan(reg, map[ID]bool{}, PlanRequest{Mode: Apply, App: "main", Name: "m4"})
	var ume *UnknownMigrationError
	require.ErrorAs(t, err, &ume)
	assert.Equal(t, "main", ume.App)
	assert.Equal(t, "m4", ume.Name)

	_, err = GeneratePlan(reg, map[ID]bool{}, PlanRequest{Mode: Apply, App: "other"})
	var uae *UnknownAppError
	require.ErrorAs(t, err, &uae)
	assert.Equal(t, "other", uae.App)
}

func TestPlanRequest_NameWithoutAppIsRejected(t *testing.T) {
	reg := NewRegistry()
	_, err := GeneratePlan(reg, map[ID]bool{}, PlanRequest{Mode: Apply, Name: "m1"})
	var anr *AppNameRequiredError
	require.ErrorAs(t, err, &anr)
}

// P3: plan(Apply) on empty applied set equals plan(List); on fully applied
// set it is empty.
func TestPlan_ApplyMatchesListWhenNothingApplied(t *testing.T) {
	reg := NewRegistry()
	m1 := New("main", "m1")
	m2 := New("main", "m2").WithParents(m1)
	reg.Add(m2)

	listPlan, err := GeneratePlan(reg, map[ID]bool{}, PlanRequest{Mode: List})
	require.NoError(t, err)
	applyPlan, err := GeneratePlan(reg, map[ID]bool{}, PlanRequest{Mode: Apply})
	require.NoError(t, err)
	assert.Equal(t, listPlan, applyPlan)

	fullyApplied := map[ID]bool{
		{App: "main", Name: "m1"}: true,
		{App: "main", Name: "m2"}: true,
	}
	emptyPlan, err := GeneratePlan(reg, fullyApplied, PlanRequest{Mode: Apply})
	require.NoError(t, err)
	assert.Empty(t, emptyPlan)
}

// P1: every registered migration appears exactly once in plan(List), after
// its parents and after anything declaring it as a run_before target.
func TestPlan_ListContainsEveryMigrationExactlyOnce(t *testing.T) {
	reg := NewRegistry()
	a := New("main", "a")
	b := New("main", "b").WithParents(a)
	c := New("main", "c").WithRunBefore(ID{App: "main", Name: "b"})
	reg.AddAll(a, b, c)

	plan, err := GeneratePlan(reg, map[ID]bool{}, PlanRequest{Mode: List})
	require.NoError(t, err)
	assert.Len(t, plan, 3)

	seen := map[ID]bool{}
	pos := map[ID]int{}
	for i, id := range plan {
		assert.False(t, seen[id], "duplicate entry for %s", id)
		seen[id] = true
		pos[id] = i
	}
	bID := ID{App: "main", Name: "b"}
	assert.Less(t, pos[ID{App: "main", Name: "a"}], pos[bID], "b must follow its parent a")
	assert.Less(t, pos[ID{App: "main", Name: "c"}], pos[bID], "b must follow c, which declares it as run_before")
}
