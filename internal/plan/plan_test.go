package plan

import (
	"fmt"
	"time"
)

// fixture builds a plan with one "Validation" phase holding tasks
// t1..tN in order, used across the package tests.
func fixture(n int) *Plan {
	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	ph := &Phase{ID: "ph1", PlanID: "p1", Ordinal: 1, Label: "Validation"}
	for i := 0; i < n; i++ {
		ph.Tasks = append(ph.Tasks, &Task{
			ID:        fmt.Sprintf("t%d", i+1),
			PhaseID:   ph.ID,
			Title:     fmt.Sprintf("Task %d", i+1),
			Order:     i,
			Status:    StatusNotStarted,
			CreatedBy: OriginSystem,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return &Plan{
		ID:        "p1",
		Title:     "Test plan",
		Status:    PlanActive,
		Version:   1,
		Phases:    []*Phase{ph},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (p *Plan) withEdge(pre, dep string) *Plan {
	p.Edges = append(p.Edges, &Edge{
		ID:             fmt.Sprintf("e-%s-%s", pre, dep),
		PrerequisiteID: pre,
		DependentID:    dep,
	})
	return p
}
