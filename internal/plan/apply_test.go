package plan

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var applyTime = time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)

func seedMutation() Mutation {
	return Mutation{
		Op:        OpCreatePlan,
		ActorID:   "system",
		Timestamp: applyTime,
		PlanID:    "p1",
		PlanTitle: "Launch roadmap",
		Seed: &GeneratedPlan{
			Phases: []GeneratedPhase{
				{Label: "Validation", Tasks: []GeneratedTask{
					{Title: "Interview customers", EstimatedTime: "2w"},
					{Title: "Landing page test"},
				}},
				{Label: "Planning", Tasks: []GeneratedTask{
					{Title: "Write one-pager", Resources: []string{"https://example.com/guide"}},
				}},
			},
		},
		SeedIDs: &SeedIDs{
			PhaseIDs: []string{"ph1", "ph2"},
			TaskIDs:  [][]string{{"t1", "t2"}, {"t3"}},
		},
	}
}

func TestApply_CreatePlan(t *testing.T) {
	p, change, err := Apply(nil, seedMutation())
	require.NoError(t, err)

	assert.Equal(t, int64(1), p.Version)
	assert.Equal(t, PlanActive, p.Status)
	require.Len(t, p.Phases, 2)
	assert.Equal(t, 1, p.Phases[0].Ordinal)
	assert.Equal(t, []string{"t1", "t2"}, liveOrder(p.Phases[0]))
	assert.Empty(t, p.Edges)
	assert.Equal(t, "p1", change.TargetID)

	t1, _ := p.FindTask("t1")
	assert.Equal(t, StatusNotStarted, t1.Status)
	assert.Equal(t, OriginSystem, t1.CreatedBy)
}

func TestApply_CreatePlan_IDMismatch(t *testing.T) {
	m := seedMutation()
	m.SeedIDs.TaskIDs = [][]string{{"t1"}, {"t3"}}
	_, _, err := Apply(nil, m)
	assert.ErrorIs(t, err, ErrValidation)
}

func applied(t *testing.T, p *Plan, m Mutation) *Plan {
	t.Helper()
	m.Timestamp = applyTime
	next, _, err := Apply(p, m)
	require.NoError(t, err)
	return next
}

func TestApply_InputPlanUntouched(t *testing.T) {
	p, _, _ := Apply(nil, seedMutation())
	before, _ := json.Marshal(p)

	_, _, err := Apply(p, Mutation{Op: OpSetStatus, TaskID: "t1", Status: StatusCompleted, Timestamp: applyTime})
	require.NoError(t, err)

	after, _ := json.Marshal(p)
	assert.JSONEq(t, string(before), string(after), "input plan was mutated")
}

func TestApply_VersionIncrementsByOne(t *testing.T) {
	p, _, _ := Apply(nil, seedMutation())
	next := applied(t, p, Mutation{Op: OpSetStatus, TaskID: "t1", Status: StatusInProgress})
	assert.Equal(t, p.Version+1, next.Version)
}

func TestApply_AddTask(t *testing.T) {
	p, _, _ := Apply(nil, seedMutation())

	next := applied(t, p, Mutation{
		Op: OpAddTask, PhaseID: "ph1", TaskID: "t9",
		Title: "Survey pricing", AfterTaskID: "t1",
	})
	assert.Equal(t, []string{"t1", "t9", "t2"}, liveOrder(next.Phases[0]))

	t9, _ := next.FindTask("t9")
	assert.Equal(t, OriginUser, t9.CreatedBy)
}

func TestApply_AddTask_Prepend(t *testing.T) {
	p, _, _ := Apply(nil, seedMutation())

	next := applied(t, p, Mutation{
		Op: OpAddTask, PhaseID: "ph1", TaskID: "t9",
		Title: "Define scope", Prepend: true,
	})
	assert.Equal(t, []string{"t9", "t1", "t2"}, liveOrder(next.Phases[0]))
}

func TestApply_AddTask_RequiresTitle(t *testing.T) {
	p, _, _ := Apply(nil, seedMutation())
	_, _, err := Apply(p, Mutation{Op: OpAddTask, PhaseID: "ph1", TaskID: "t9", Timestamp: applyTime})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestApply_EditTask_Patch(t *testing.T) {
	p, _, _ := Apply(nil, seedMutation())

	title := "Interview 20 customers"
	next := applied(t, p, Mutation{Op: OpEditTask, TaskID: "t1", NewTitle: &title})

	t1, _ := next.FindTask("t1")
	assert.Equal(t, title, t1.Title)
	assert.Equal(t, "2w", t1.EstimatedTime, "unset fields stay unchanged")
}

func TestApply_SetStatus_BlockedByPrerequisite(t *testing.T) {
	// T3 depends on T1; completing T3 first is rejected, completing T1
	// then retrying succeeds.
	p, _, _ := Apply(nil, seedMutation())
	p = applied(t, p, Mutation{Op: OpAddDependency, EdgeID: "e1", PrerequisiteID: "t1", TaskID: "t3"})

	_, _, err := Apply(p, Mutation{Op: OpSetStatus, TaskID: "t3", Status: StatusCompleted, Timestamp: applyTime})
	require.ErrorIs(t, err, ErrDependencyNotSatisfied)

	var be *BlockedError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, []string{"t1"}, be.Unsatisfied)

	p = applied(t, p, Mutation{Op: OpSetStatus, TaskID: "t1", Status: StatusCompleted})
	p = applied(t, p, Mutation{Op: OpSetStatus, TaskID: "t3", Status: StatusCompleted})
	t3, _ := p.FindTask("t3")
	assert.Equal(t, StatusCompleted, t3.Status)
}

func TestApply_SetStatus_OverrideBypassesGate(t *testing.T) {
	p, _, _ := Apply(nil, seedMutation())
	p = applied(t, p, Mutation{Op: OpAddDependency, EdgeID: "e1", PrerequisiteID: "t1", TaskID: "t3"})

	next := applied(t, p, Mutation{Op: OpSetStatus, TaskID: "t3", Status: StatusCompleted, Override: true})
	t3, _ := next.FindTask("t3")
	assert.Equal(t, StatusCompleted, t3.Status)
}

func TestApply_SetStatus_BackwardAlwaysAllowed(t *testing.T) {
	p, _, _ := Apply(nil, seedMutation())
	p = applied(t, p, Mutation{Op: OpAddDependency, EdgeID: "e1", PrerequisiteID: "t1", TaskID: "t3"})

	// Moving a blocked task back to not_started or skipped needs no gate.
	next := applied(t, p, Mutation{Op: OpSetStatus, TaskID: "t3", Status: StatusSkipped})
	t3, _ := next.FindTask("t3")
	assert.Equal(t, StatusSkipped, t3.Status)
}

func TestApply_DeleteTask_RemovesEdges(t *testing.T) {
	p, _, _ := Apply(nil, seedMutation())
	p = applied(t, p, Mutation{Op: OpAddDependency, EdgeID: "e1", PrerequisiteID: "t1", TaskID: "t3"})
	p = applied(t, p, Mutation{Op: OpAddDependency, EdgeID: "e2", PrerequisiteID: "t2", TaskID: "t3"})

	next, change, err := Apply(p, Mutation{Op: OpDeleteTask, TaskID: "t1", Timestamp: applyTime})
	require.NoError(t, err)

	require.Len(t, next.Edges, 1)
	assert.Equal(t, "e2", next.Edges[0].ID)
	assert.False(t, next.IsUnblocked("t3"), "t3 still blocked by t2")

	var before DeletedTaskState
	require.NoError(t, json.Unmarshal(change.Before, &before))
	assert.Equal(t, "t1", before.Task.ID)
	require.Len(t, before.Edges, 1)
	assert.Equal(t, "e1", before.Edges[0].ID)
}

func TestApply_AddDependency_Cycle(t *testing.T) {
	p, _, _ := Apply(nil, seedMutation())
	p = applied(t, p, Mutation{Op: OpAddDependency, EdgeID: "e1", PrerequisiteID: "t1", TaskID: "t3"})

	_, _, err := Apply(p, Mutation{Op: OpAddDependency, EdgeID: "e2", PrerequisiteID: "t3", TaskID: "t1", Timestamp: applyTime})
	assert.ErrorIs(t, err, ErrWouldCycle)
}

func TestApply_AddDependency_RepeatKeepsOriginal(t *testing.T) {
	p, _, _ := Apply(nil, seedMutation())
	p = applied(t, p, Mutation{Op: OpAddDependency, EdgeID: "e1", PrerequisiteID: "t1", TaskID: "t3"})

	next, change, err := Apply(p, Mutation{Op: OpAddDependency, EdgeID: "e2", PrerequisiteID: "t1", TaskID: "t3", Timestamp: applyTime})
	require.NoError(t, err)
	require.Len(t, next.Edges, 1)
	assert.Equal(t, "e1", next.Edges[0].ID, "original edge survives")
	assert.Equal(t, "e1", change.TargetID)
}

func TestApply_RemoveDependency(t *testing.T) {
	p, _, _ := Apply(nil, seedMutation())
	p = applied(t, p, Mutation{Op: OpAddDependency, EdgeID: "e1", PrerequisiteID: "t1", TaskID: "t3"})

	next := applied(t, p, Mutation{Op: OpRemoveDependency, EdgeID: "e1"})
	assert.Empty(t, next.Edges)
	assert.True(t, next.IsUnblocked("t3"))

	_, _, err := Apply(next, Mutation{Op: OpRemoveDependency, EdgeID: "e1", Timestamp: applyTime})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApply_ArchivedPlanRejectsMutations(t *testing.T) {
	p, _, _ := Apply(nil, seedMutation())
	p = applied(t, p, Mutation{Op: OpArchivePlan})
	assert.Equal(t, PlanArchived, p.Status)

	_, _, err := Apply(p, Mutation{Op: OpSetStatus, TaskID: "t1", Status: StatusCompleted, Timestamp: applyTime})
	assert.ErrorIs(t, err, ErrPlanArchived)
}

func TestApply_FailedMutationLeavesNothingBehind(t *testing.T) {
	p, _, _ := Apply(nil, seedMutation())
	beforeJSON, _ := json.Marshal(p)

	_, _, err := Apply(p, Mutation{Op: OpAddDependency, EdgeID: "e1", PrerequisiteID: "t1", TaskID: "t1", Timestamp: applyTime})
	require.Error(t, err)

	afterJSON, _ := json.Marshal(p)
	assert.JSONEq(t, string(beforeJSON), string(afterJSON))
}
