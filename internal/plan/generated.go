package plan

import "fmt"

// GeneratedPlan is the one-shot payload produced by the generation
// collaborator. It is consumed once at plan creation to seed phases
// and tasks with sequential orders and no dependency edges.
type GeneratedPlan struct {
	Phases []GeneratedPhase `json:"phases"`
}

// GeneratedPhase seeds one phase.
type GeneratedPhase struct {
	Label string          `json:"label"`
	Tasks []GeneratedTask `json:"tasks"`
}

// GeneratedTask seeds one task.
type GeneratedTask struct {
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	EstimatedTime string   `json:"estimated_time,omitempty"`
	Resources     []string `json:"resources,omitempty"`
}

// Validate checks the payload is well formed.
func (g *GeneratedPlan) Validate() error {
	if len(g.Phases) == 0 {
		return fmt.Errorf("%w: generated plan has no phases", ErrValidation)
	}
	for i, ph := range g.Phases {
		if ph.Label == "" {
			return fmt.Errorf("%w: phase %d has no label", ErrValidation, i)
		}
		for j, t := range ph.Tasks {
			if t.Title == "" {
				return fmt.Errorf("%w: phase %q task %d has no title", ErrValidation, ph.Label, j)
			}
		}
	}
	return nil
}
