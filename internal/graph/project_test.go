package graph

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/actionplan/internal/plan"
)

// mockDriver records writes and serves canned read results.
type mockDriver struct {
	writes  []string
	params  []map[string]any
	results []Record
}

func (m *mockDriver) Execute(ctx context.Context, query string, params map[string]any) ([]Record, error) {
	return m.results, nil
}

func (m *mockDriver) ExecuteWrite(ctx context.Context, query string, params map[string]any) error {
	m.writes = append(m.writes, query)
	m.params = append(m.params, params)
	return nil
}

func (m *mockDriver) Close() error                   { return nil }
func (m *mockDriver) Ping(ctx context.Context) error { return nil }

func projectedPlan() *plan.Plan {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	return &plan.Plan{
		ID:      "p1",
		Title:   "Roadmap",
		Version: 4,
		Status:  plan.PlanActive,
		Phases: []*plan.Phase{
			{ID: "ph1", PlanID: "p1", Ordinal: 0, Label: "Validation", Tasks: []*plan.Task{
				{ID: "t1", PhaseID: "ph1", Title: "A", Order: 0, Status: plan.StatusCompleted, CreatedAt: now},
				{ID: "t2", PhaseID: "ph1", Title: "B", Order: 1, Status: plan.StatusNotStarted, CreatedAt: now},
				{ID: "t3", PhaseID: "ph1", Title: "C", Order: 0, Status: plan.StatusNotStarted, Deleted: true, CreatedAt: now},
			}},
		},
		Edges: []*plan.Edge{
			{ID: "e1", PrerequisiteID: "t1", DependentID: "t2", CreatedAt: now},
		},
	}
}

func TestSyncReplacesSubgraph(t *testing.T) {
	m := &mockDriver{}
	pr := NewProjector(m)

	require.NoError(t, pr.Sync(context.Background(), projectedPlan()))

	// Clear, plan node, phase, two active tasks, one edge. The deleted
	// task is not projected.
	require.Len(t, m.writes, 6)
	assert.Contains(t, m.writes[0], "DETACH DELETE")
	assert.Contains(t, m.writes[1], ":Plan")
	assert.Contains(t, m.writes[2], ":Phase")
	assert.Contains(t, m.writes[3], ":Task")
	assert.Contains(t, m.writes[4], ":Task")
	assert.Contains(t, m.writes[5], "DEPENDS_ON")

	for _, p := range m.params[3:5] {
		assert.NotEqual(t, "t3", p["id"])
	}
	assert.Equal(t, "t1", m.params[5]["pre"])
	assert.Equal(t, "t2", m.params[5]["dep"])
}

func TestBlockedTasks(t *testing.T) {
	m := &mockDriver{results: []Record{{"id": "t2"}, {"id": "t5"}}}
	pr := NewProjector(m)

	got, err := pr.BlockedTasks(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"t2", "t5"}, got)
}

func TestLongestChain(t *testing.T) {
	m := &mockDriver{results: []Record{{"depth": int64(3)}}}
	pr := NewProjector(m)

	got, err := pr.LongestChain(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, got)
}

func TestRecordHelpers(t *testing.T) {
	r := Record{"s": "x", "n": int64(7), "list": []any{"a", "b"}}
	assert.Equal(t, "x", GetString(r, "s"))
	assert.Equal(t, "", GetString(r, "n"))
	assert.Equal(t, 7, GetInt(r, "n"))
	assert.Equal(t, []string{"a", "b"}, GetStringSlice(r, "list"))
}
