package export

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/actionplan/internal/plan"
)

func exportPlan() *plan.Plan {
	now := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	return &plan.Plan{
		ID:      "p1",
		Title:   "Roadmap",
		Status:  plan.PlanActive,
		Version: 6,
		Phases: []*plan.Phase{
			{ID: "ph1", PlanID: "p1", Label: "Validation", Tasks: []*plan.Task{
				{ID: "t1", PhaseID: "ph1", Title: "Interview customers", Order: 0, Status: plan.StatusCompleted, CreatedAt: now},
				{ID: "t2", PhaseID: "ph1", Title: "Write summary", Order: 1, Status: plan.StatusNotStarted, EstimatedTime: "2d", CreatedAt: now},
				{ID: "t3", PhaseID: "ph1", Title: "Old idea", Order: 2, Status: plan.StatusSkipped, CreatedAt: now},
			}},
			{ID: "ph2", PlanID: "p1", Label: "Launch", Tasks: []*plan.Task{
				{ID: "t4", PhaseID: "ph2", Title: "Ship landing page", Order: 0, Status: plan.StatusNotStarted, CreatedAt: now},
			}},
		},
		Edges: []*plan.Edge{
			{ID: "e1", PrerequisiteID: "t1", DependentID: "t2", CreatedAt: now},
			{ID: "e2", PrerequisiteID: "t2", DependentID: "t4", CreatedAt: now},
		},
	}
}

func TestBuildResolvesDependencyTitles(t *testing.T) {
	snap := Build(exportPlan(), Options{IncludeCompleted: true, IncludeSkipped: true})

	require.Len(t, snap.Phases, 2)
	require.Len(t, snap.Phases[0].Tasks, 3)

	t2 := snap.Phases[0].Tasks[1]
	require.Len(t, t2.DependsOn, 1)
	assert.Equal(t, "t1", t2.DependsOn[0].TaskID)
	assert.Equal(t, "Interview customers", t2.DependsOn[0].Title)

	t4 := snap.Phases[1].Tasks[0]
	require.Len(t, t4.DependsOn, 1)
	assert.Equal(t, "Write summary", t4.DependsOn[0].Title)
}

func TestBuildRollups(t *testing.T) {
	snap := Build(exportPlan(), Options{})

	// t3 is skipped: excluded from the denominator.
	ph1 := snap.Phases[0]
	assert.Equal(t, 2, ph1.Total)
	assert.Equal(t, 1, ph1.Completed)
	assert.InDelta(t, 50.0, ph1.Percent, 0.01)
	assert.Equal(t, 33, snap.OverallPercent)
}

func TestBuildFilters(t *testing.T) {
	snap := Build(exportPlan(), Options{})

	// Completed t1 and skipped t3 are filtered out, but t2 still
	// resolves its dependency on t1 by title.
	require.Len(t, snap.Phases[0].Tasks, 1)
	t2 := snap.Phases[0].Tasks[0]
	assert.Equal(t, "t2", t2.ID)
	require.Len(t, t2.DependsOn, 1)
	assert.Equal(t, "Interview customers", t2.DependsOn[0].Title)
}

func TestParseFormat(t *testing.T) {
	got, err := ParseFormat("md")
	require.NoError(t, err)
	assert.Equal(t, FormatMarkdown, got)

	_, err = ParseFormat("xml")
	assert.ErrorIs(t, err, plan.ErrValidation)
}

func TestSerializeJSON(t *testing.T) {
	snap := Build(exportPlan(), Options{IncludeCompleted: true})
	out, err := Serialize(snap, FormatJSON)
	require.NoError(t, err)

	var decoded Snapshot
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "p1", decoded.PlanID)
	assert.Equal(t, int64(6), decoded.Version)
}

func TestSerializeCSV(t *testing.T) {
	snap := Build(exportPlan(), Options{IncludeCompleted: true, IncludeSkipped: true})
	out, err := Serialize(snap, FormatCSV)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 5) // header + 4 task rows
	assert.Contains(t, lines[0], "depends_on")
	assert.Contains(t, lines[2], "Interview customers")
}

func TestSerializeMarkdown(t *testing.T) {
	snap := Build(exportPlan(), Options{IncludeCompleted: true, IncludeSkipped: true})
	out, err := Serialize(snap, FormatMarkdown)
	require.NoError(t, err)

	text := string(out)
	assert.Contains(t, text, "# Roadmap")
	assert.Contains(t, text, "## Validation (1/2, 50%)")
	assert.Contains(t, text, "- [x] Interview customers")
	assert.Contains(t, text, "- [-] Old idea")
	assert.Contains(t, text, "depends on: Interview customers")
}
