package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/actionplan/internal/history"
	"github.com/joss/actionplan/internal/plan"
)

func openTest(t *testing.T) *SQLite {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "plans.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testPlan(t *testing.T) (*plan.Plan, *history.Entry) {
	t.Helper()
	m := plan.Mutation{
		Op:        plan.OpCreatePlan,
		ActorID:   "system",
		Timestamp: time.Date(2026, 4, 3, 8, 0, 0, 0, time.UTC),
		PlanID:    "p1",
		PlanTitle: "Roadmap",
		Seed: &plan.GeneratedPlan{
			Phases: []plan.GeneratedPhase{
				{Label: "Validation", Tasks: []plan.GeneratedTask{
					{Title: "A", Resources: []string{"https://example.com"}},
					{Title: "B"},
				}},
				{Label: "Planning", Tasks: []plan.GeneratedTask{{Title: "C"}}},
			},
		},
		SeedIDs: &plan.SeedIDs{
			PhaseIDs: []string{"ph1", "ph2"},
			TaskIDs:  [][]string{{"t1", "t2"}, {"t3"}},
		},
	}
	p, change, err := plan.Apply(nil, m)
	require.NoError(t, err)
	entry := &history.Entry{
		ID: "h1", PlanID: p.ID, Version: p.Version, ActorID: m.ActorID,
		Op: m.Op, TargetID: change.TargetID, Mutation: m,
		Before: change.Before, After: change.After,
		CreatedAt: m.Timestamp,
	}
	return p, entry
}

func commitMutation(t *testing.T, s *SQLite, p *plan.Plan, m plan.Mutation, entryID string) *plan.Plan {
	t.Helper()
	m.Timestamp = time.Date(2026, 4, 3, 9, 0, 0, 0, time.UTC)
	next, change, err := plan.Apply(p, m)
	require.NoError(t, err)
	entry := &history.Entry{
		ID: entryID, PlanID: next.ID, Version: next.Version, ActorID: m.ActorID,
		Op: m.Op, TargetID: change.TargetID, Mutation: m,
		Before: change.Before, After: change.After,
		CreatedAt: m.Timestamp,
	}
	var snap *plan.ProgressSnapshot
	if m.AffectsProgress() {
		sn := plan.Recompute(next)
		snap = &sn
	}
	require.NoError(t, s.Commit(context.Background(), next, entry, snap))
	return next
}

func TestCommitAndGetPlan_RoundTrip(t *testing.T) {
	s := openTest(t)
	p, entry := testPlan(t)
	snap := plan.Recompute(p)

	require.NoError(t, s.Commit(context.Background(), p, entry, &snap))

	got, err := s.GetPlan(context.Background(), "p1")
	require.NoError(t, err)

	want, _ := json.Marshal(p)
	have, _ := json.Marshal(got)
	assert.JSONEq(t, string(want), string(have))
}

func TestGetPlan_NotFound(t *testing.T) {
	s := openTest(t)
	_, err := s.GetPlan(context.Background(), "ghost")
	assert.ErrorIs(t, err, plan.ErrNotFound)
}

func TestCommit_VersionGuard(t *testing.T) {
	s := openTest(t)
	p, entry := testPlan(t)
	require.NoError(t, s.Commit(context.Background(), p, entry, nil))

	// Committing the same version again is refused.
	err := s.Commit(context.Background(), p, entry, nil)
	assert.ErrorIs(t, err, plan.ErrVersionConflict)

	// Skipping a version is refused too.
	skipped := p.Clone()
	skipped.Version += 2
	err = s.Commit(context.Background(), skipped, nil, nil)
	assert.ErrorIs(t, err, plan.ErrVersionConflict)
}

func TestCommit_PersistsMutationChain(t *testing.T) {
	s := openTest(t)
	p, entry := testPlan(t)
	require.NoError(t, s.Commit(context.Background(), p, entry, nil))

	p = commitMutation(t, s, p, plan.Mutation{
		Op: plan.OpAddDependency, ActorID: "alice",
		EdgeID: "e1", PrerequisiteID: "t1", TaskID: "t3",
	}, "h2")
	p = commitMutation(t, s, p, plan.Mutation{
		Op: plan.OpSetStatus, ActorID: "alice", TaskID: "t1", Status: plan.StatusCompleted,
	}, "h3")
	p = commitMutation(t, s, p, plan.Mutation{
		Op: plan.OpDeleteTask, ActorID: "bob", TaskID: "t2",
	}, "h4")

	got, err := s.GetPlan(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), got.Version)
	require.Len(t, got.Edges, 1)

	t2, _ := got.FindTask("t2")
	require.NotNil(t, t2, "soft-deleted task is retained")
	assert.True(t, t2.Deleted)

	want, _ := json.Marshal(p)
	have, _ := json.Marshal(got)
	assert.JSONEq(t, string(want), string(have))
}

func TestListHistory(t *testing.T) {
	s := openTest(t)
	p, entry := testPlan(t)
	require.NoError(t, s.Commit(context.Background(), p, entry, nil))
	commitMutation(t, s, p, plan.Mutation{
		Op: plan.OpSetStatus, ActorID: "alice", TaskID: "t1", Status: plan.StatusCompleted,
	}, "h2")

	entries, err := s.ListHistory(context.Background(), "p1", 0, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, plan.OpCreatePlan, entries[0].Op)
	assert.Equal(t, plan.OpSetStatus, entries[1].Op)
	assert.Equal(t, plan.StatusCompleted, entries[1].Mutation.Status)

	since, err := s.ListHistory(context.Background(), "p1", 1, 0)
	require.NoError(t, err)
	require.Len(t, since, 1)
	assert.Equal(t, int64(2), since[0].Version)
}

func TestReplayFromSQLite(t *testing.T) {
	s := openTest(t)
	p, entry := testPlan(t)
	require.NoError(t, s.Commit(context.Background(), p, entry, nil))
	p = commitMutation(t, s, p, plan.Mutation{
		Op: plan.OpAddTask, ActorID: "bob", PhaseID: "ph1", TaskID: "t9", Title: "New task",
	}, "h2")
	p = commitMutation(t, s, p, plan.Mutation{
		Op: plan.OpReorderTask, ActorID: "bob", PhaseID: "ph1", TaskID: "t9", NewOrder: 0,
	}, "h3")

	replayed, err := history.NewLedger(s).Replay(context.Background(), "p1", 0)
	require.NoError(t, err)

	want, _ := json.Marshal(p)
	have, _ := json.Marshal(replayed)
	assert.JSONEq(t, string(want), string(have))
}

func TestListSnapshots(t *testing.T) {
	s := openTest(t)
	p, entry := testPlan(t)
	snap := plan.Recompute(p)
	require.NoError(t, s.Commit(context.Background(), p, entry, &snap))
	commitMutation(t, s, p, plan.Mutation{
		Op: plan.OpSetStatus, ActorID: "alice", TaskID: "t1", Status: plan.StatusCompleted,
	}, "h2")

	snaps, err := s.ListSnapshots(context.Background(), "p1", 0)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, 0, snaps[0].CompletedTasks)
	assert.Equal(t, 1, snaps[1].CompletedTasks)
	assert.Equal(t, 33, snaps[1].OverallPercent)
	require.Len(t, snaps[1].PerPhase, 2)
}

func TestListPlans(t *testing.T) {
	s := openTest(t)
	p, entry := testPlan(t)
	require.NoError(t, s.Commit(context.Background(), p, entry, nil))

	plans, err := s.ListPlans(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "p1", plans[0].ID)
	assert.Empty(t, plans[0].Phases, "headers only")
}
