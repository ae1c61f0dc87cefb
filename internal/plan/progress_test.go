package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func setStatus(t *testing.T, p *Plan, taskID string, s Status) {
	t.Helper()
	task, _ := p.FindTask(taskID)
	if task == nil {
		t.Fatalf("task %s not in fixture", taskID)
	}
	task.Status = s
}

func TestRecompute_SkippedExcludedFromDenominator(t *testing.T) {
	// 4 tasks: 2 completed, 1 skipped, 1 not started -> 2/3 ~ 67%.
	p := fixture(4)
	setStatus(t, p, "t1", StatusCompleted)
	setStatus(t, p, "t2", StatusCompleted)
	setStatus(t, p, "t3", StatusSkipped)

	snap := Recompute(p)
	assert.Equal(t, 4, snap.TotalTasks)
	assert.Equal(t, 2, snap.CompletedTasks)
	assert.Equal(t, 67, snap.OverallPercent)
}

func TestRecompute_EmptyCountableIsComplete(t *testing.T) {
	p := fixture(2)
	setStatus(t, p, "t1", StatusSkipped)
	setStatus(t, p, "t2", StatusSkipped)

	snap := Recompute(p)
	assert.Equal(t, 100, snap.OverallPercent)
	assert.Equal(t, float64(100), snap.PerPhase[0].Percent)
}

func TestRecompute_RoundHalfUp(t *testing.T) {
	// 1 of 8 completed = 12.5% -> 13.
	p := fixture(8)
	setStatus(t, p, "t1", StatusCompleted)

	snap := Recompute(p)
	assert.Equal(t, 13, snap.OverallPercent)
}

func TestRecompute_DeletedTasksIgnored(t *testing.T) {
	p := fixture(3)
	setStatus(t, p, "t1", StatusCompleted)
	assert.NoError(t, RemoveTask(p.Phases[0], "t3"))

	snap := Recompute(p)
	assert.Equal(t, 2, snap.TotalTasks)
	assert.Equal(t, 50, snap.OverallPercent)
}

func TestRecompute_MonotonicUnderCompletion(t *testing.T) {
	p := fixture(6)
	setStatus(t, p, "t2", StatusSkipped)

	prev := Recompute(p).OverallPercent
	for _, id := range []string{"t1", "t3", "t4", "t5", "t6"} {
		setStatus(t, p, id, StatusCompleted)
		cur := Recompute(p).OverallPercent
		assert.GreaterOrEqual(t, cur, prev, "completing %s decreased progress", id)
		prev = cur
	}
	assert.Equal(t, 100, prev)
}

func TestCompletedPhases_FiresOncePerCrossing(t *testing.T) {
	p := fixture(2)
	before := Recompute(p)

	setStatus(t, p, "t1", StatusCompleted)
	setStatus(t, p, "t2", StatusCompleted)
	after := Recompute(p)

	assert.Equal(t, []string{"ph1"}, CompletedPhases(before, after))

	// Re-saving an already complete phase fires nothing.
	assert.Empty(t, CompletedPhases(after, Recompute(p)))
}
