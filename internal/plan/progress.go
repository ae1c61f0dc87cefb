package plan

import (
	"math"
	"time"
)

// PhaseCompletion is the per-phase slice of a progress snapshot.
type PhaseCompletion struct {
	PhaseID   string  `json:"phase_id"`
	Label     string  `json:"label"`
	Total     int     `json:"total"`     // countable (non-skipped) tasks
	Completed int     `json:"completed"` // completed tasks
	Percent   float64 `json:"percent"`
}

// ProgressSnapshot is an immutable point-in-time completion summary.
type ProgressSnapshot struct {
	PlanID         string            `json:"plan_id"`
	Version        int64             `json:"version"`
	TotalTasks     int               `json:"total_tasks"`
	CompletedTasks int               `json:"completed_tasks"`
	PerPhase       []PhaseCompletion `json:"per_phase"`
	OverallPercent int               `json:"overall_percent"`
	CreatedAt      time.Time         `json:"created_at"`
}

// roundHalfUp rounds to the nearest integer, halves away from zero.
func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}

// Recompute derives completion percentages at phase and plan
// granularity. Skipped tasks are excluded from denominators; a phase
// with zero countable tasks reports 100%.
func Recompute(p *Plan) ProgressSnapshot {
	snap := ProgressSnapshot{
		PlanID:    p.ID,
		Version:   p.Version,
		CreatedAt: time.Now().UTC(),
	}

	var countable, completed int
	for _, ph := range p.Phases {
		pc := PhaseCompletion{PhaseID: ph.ID, Label: ph.Label}
		for _, t := range ph.ActiveTasks() {
			snap.TotalTasks++
			if t.Status == StatusSkipped {
				continue
			}
			pc.Total++
			if t.Status == StatusCompleted {
				pc.Completed++
			}
		}
		if pc.Total == 0 {
			pc.Percent = 100
		} else {
			pc.Percent = float64(pc.Completed) / float64(pc.Total) * 100
		}
		countable += pc.Total
		completed += pc.Completed
		snap.PerPhase = append(snap.PerPhase, pc)
	}

	snap.CompletedTasks = completed
	if countable == 0 {
		snap.OverallPercent = 100
	} else {
		snap.OverallPercent = roundHalfUp(float64(completed) / float64(countable) * 100)
	}
	return snap
}

// CompletedPhases returns the IDs of phases at 100% in after that were
// below 100% in before. The engine fires a single phase-completed
// event per crossing; re-saving an already complete phase fires none.
func CompletedPhases(before, after ProgressSnapshot) []string {
	prior := make(map[string]float64, len(before.PerPhase))
	for _, pc := range before.PerPhase {
		prior[pc.PhaseID] = pc.Percent
	}
	var out []string
	for _, pc := range after.PerPhase {
		if pc.Percent >= 100 && prior[pc.PhaseID] < 100 {
			out = append(out, pc.PhaseID)
		}
	}
	return out
}
