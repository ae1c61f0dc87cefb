package plan

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanAddEdge_SelfReference(t *testing.T) {
	p := fixture(3)
	err := p.CanAddEdge("t1", "t1")
	assert.ErrorIs(t, err, ErrSelfReference)
}

func TestCanAddEdge_UnknownTask(t *testing.T) {
	p := fixture(3)
	assert.ErrorIs(t, p.CanAddEdge("t1", "elsewhere"), ErrCrossPlan)
	assert.ErrorIs(t, p.CanAddEdge("elsewhere", "t1"), ErrCrossPlan)
}

func TestCanAddEdge_DirectCycle(t *testing.T) {
	// Edge T1->T3 exists; T3->T1 closes a cycle.
	p := fixture(3).withEdge("t1", "t3")

	err := p.CanAddEdge("t3", "t1")
	require.ErrorIs(t, err, ErrWouldCycle)

	var ce *CycleError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "t3", ce.PrerequisiteID)
	assert.Equal(t, "t1", ce.DependentID)
	assert.Equal(t, []string{"t1", "t3"}, ce.Path)
}

func TestCanAddEdge_TransitiveCycle(t *testing.T) {
	p := fixture(4).withEdge("t1", "t2").withEdge("t2", "t3")
	assert.ErrorIs(t, p.CanAddEdge("t3", "t1"), ErrWouldCycle)
	// Sibling edges are fine.
	assert.NoError(t, p.CanAddEdge("t1", "t4"))
	assert.NoError(t, p.CanAddEdge("t1", "t3"))
}

func TestCanAddEdge_DuplicateIsNoop(t *testing.T) {
	p := fixture(2).withEdge("t1", "t2")
	assert.NoError(t, p.CanAddEdge("t1", "t2"))
}

func TestCanAddEdge_RejectionLeavesGraphUnchanged(t *testing.T) {
	p := fixture(3).withEdge("t1", "t2")
	before := len(p.Edges)
	_ = p.CanAddEdge("t2", "t1")
	assert.Len(t, p.Edges, before)
}

func TestIsUnblocked(t *testing.T) {
	p := fixture(3).withEdge("t1", "t3").withEdge("t2", "t3")

	assert.True(t, p.IsUnblocked("t1"), "no prerequisites")
	assert.False(t, p.IsUnblocked("t3"))
	assert.ElementsMatch(t, []string{"t1", "t2"}, p.Unsatisfied("t3"))

	t1, _ := p.FindTask("t1")
	t1.Status = StatusCompleted
	assert.Equal(t, []string{"t2"}, p.Unsatisfied("t3"))

	// A skipped prerequisite counts as satisfied.
	t2, _ := p.FindTask("t2")
	t2.Status = StatusSkipped
	assert.True(t, p.IsUnblocked("t3"))
}

func TestIsUnblocked_DeletedPrerequisite(t *testing.T) {
	p := fixture(2).withEdge("t1", "t2")
	t1, _ := p.FindTask("t1")
	t1.Deleted = true
	assert.True(t, p.IsUnblocked("t2"))
}

func TestBlockedError_Unwraps(t *testing.T) {
	err := error(&BlockedError{TaskID: "t3", Unsatisfied: []string{"t1"}, TargetStatus: StatusCompleted})
	assert.True(t, errors.Is(err, ErrDependencyNotSatisfied))
}
