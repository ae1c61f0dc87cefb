// Package plan defines the core entities of the action-plan engine:
// plans, phases, tasks and dependency edges, plus the pure functions
// that validate and transform them.
package plan

import (
	"time"
)

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusSkipped    Status = "skipped"
)

// Valid reports whether s is a known task status.
func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted, StatusSkipped:
		return true
	}
	return false
}

// PlanStatus represents the lifecycle state of a plan.
type PlanStatus string

const (
	PlanActive   PlanStatus = "active"
	PlanArchived PlanStatus = "archived"
)

// Origin identifies who created a task.
type Origin string

const (
	OriginSystem Origin = "system"
	OriginUser   Origin = "user"
)

// Task is an individually trackable unit of work inside a phase.
// Position is a dense zero-based index unique within the phase.
type Task struct {
	ID            string    `json:"id"`
	PhaseID       string    `json:"phase_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	EstimatedTime string    `json:"estimated_time,omitempty"`
	Resources     []string  `json:"resources,omitempty"`
	Order         int       `json:"order"`
	Status        Status    `json:"status"`
	CreatedBy     Origin    `json:"created_by"`
	Deleted       bool      `json:"deleted,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Phase is a fixed top-level stage of a plan. Phases are created from
// the generated payload at plan creation and are never reordered.
type Phase struct {
	ID      string  `json:"id"`
	PlanID  string  `json:"plan_id"`
	Ordinal int     `json:"ordinal"`
	Label   string  `json:"label"`
	Tasks   []*Task `json:"tasks,omitempty"`
}

// ActiveTasks returns the phase's non-deleted tasks in order.
func (ph *Phase) ActiveTasks() []*Task {
	out := make([]*Task, 0, len(ph.Tasks))
	for _, t := range ph.Tasks {
		if !t.Deleted {
			out = append(out, t)
		}
	}
	return out
}

// Edge is a directed prerequisite relation between two tasks of the
// same plan. Edges are owned by the plan, not by either endpoint,
// because they must be invalidated atomically with task deletion.
type Edge struct {
	ID             string    `json:"id"`
	PrerequisiteID string    `json:"prerequisite_id"`
	DependentID    string    `json:"dependent_id"`
	CreatedAt      time.Time `json:"created_at"`
}

// Plan is one roadmap for one originating analysis. Version increases
// by exactly one on every accepted mutation.
type Plan struct {
	ID         string     `json:"id"`
	AnalysisID string     `json:"analysis_id,omitempty"`
	Title      string     `json:"title"`
	Status     PlanStatus `json:"status"`
	Version    int64      `json:"version"`
	Phases     []*Phase   `json:"phases"`
	Edges      []*Edge    `json:"edges,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// FindPhase returns the phase with the given ID, or nil.
func (p *Plan) FindPhase(phaseID string) *Phase {
	for _, ph := range p.Phases {
		if ph.ID == phaseID {
			return ph
		}
	}
	return nil
}

// FindTask returns the task with the given ID and its phase, or nil.
// Deleted tasks are still found so history and edges can resolve them.
func (p *Plan) FindTask(taskID string) (*Task, *Phase) {
	for _, ph := range p.Phases {
		for _, t := range ph.Tasks {
			if t.ID == taskID {
				return t, ph
			}
		}
	}
	return nil, nil
}

// FindEdge returns the edge with the given ID, or nil.
func (p *Plan) FindEdge(edgeID string) *Edge {
	for _, e := range p.Edges {
		if e.ID == edgeID {
			return e
		}
	}
	return nil
}

// Clone returns a deep copy of the plan. Mutations are applied to a
// clone so a failed validation never leaves a half-modified state.
func (p *Plan) Clone() *Plan {
	cp := *p
	cp.Phases = make([]*Phase, len(p.Phases))
	for i, ph := range p.Phases {
		nph := *ph
		nph.Tasks = make([]*Task, len(ph.Tasks))
		for j, t := range ph.Tasks {
			nt := *t
			if t.Resources != nil {
				nt.Resources = append([]string(nil), t.Resources...)
			}
			nph.Tasks[j] = &nt
		}
		cp.Phases[i] = &nph
	}
	cp.Edges = make([]*Edge, len(p.Edges))
	for i, e := range p.Edges {
		ne := *e
		cp.Edges[i] = &ne
	}
	return &cp
}

// TaskCount returns the number of non-deleted tasks in the plan.
func (p *Plan) TaskCount() int {
	n := 0
	for _, ph := range p.Phases {
		n += len(ph.ActiveTasks())
	}
	return n
}
