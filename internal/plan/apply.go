package plan

import (
	"encoding/json"
	"fmt"
)

// Change records the target of an applied mutation and its state on
// either side, for the history ledger and for undo inversion.
type Change struct {
	TargetID string          `json:"target_id"`
	Before   json.RawMessage `json:"before,omitempty"`
	After    json.RawMessage `json:"after,omitempty"`
}

// DeletedTaskState is the before-image of a delete_task mutation: the
// task plus the edges that were invalidated with it. Undo restores
// both.
type DeletedTaskState struct {
	Task  *Task   `json:"task"`
	Edges []*Edge `json:"edges,omitempty"`
}

// phaseOrder is the before/after image of a reorder.
type phaseOrder struct {
	PhaseID string   `json:"phase_id"`
	TaskIDs []string `json:"task_ids"`
}

func marshal(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

// Apply runs one mutation against a copy of the plan and returns the
// resulting state. The input plan is never modified; on error the
// caller keeps the last-committed state untouched. The same function
// drives live mutations and history replay, so replayed history
// reconstructs live state by construction.
//
// Version increments by exactly one on success. Archived plans reject
// everything except create (which never targets an existing plan).
func Apply(p *Plan, m Mutation) (*Plan, Change, error) {
	if m.Op == OpCreatePlan {
		return applyCreate(m)
	}
	if p == nil {
		return nil, Change{}, NewNotFoundError("plan", m.PlanID)
	}
	if p.Status == PlanArchived && m.Op != OpUnarchivePlan {
		return nil, Change{}, ErrPlanArchived
	}

	next := p.Clone()
	next.Version++
	next.UpdatedAt = m.Timestamp

	var (
		change Change
		err    error
	)
	switch m.Op {
	case OpArchivePlan:
		change.TargetID = next.ID
		change.Before = marshal(map[string]any{"status": next.Status})
		next.Status = PlanArchived
		change.After = marshal(map[string]any{"status": next.Status})
	case OpUnarchivePlan:
		change.TargetID = next.ID
		change.Before = marshal(map[string]any{"status": next.Status})
		next.Status = PlanActive
		change.After = marshal(map[string]any{"status": next.Status})
	case OpAddTask:
		change, err = applyAddTask(next, m)
	case OpEditTask:
		change, err = applyEditTask(next, m)
	case OpSetStatus:
		change, err = applySetStatus(next, m)
	case OpReorderTask:
		change, err = applyReorder(next, m)
	case OpDeleteTask:
		change, err = applyDeleteTask(next, m)
	case OpRestoreTask:
		change, err = applyRestoreTask(next, m)
	case OpAddDependency:
		change, err = applyAddEdge(next, m)
	case OpRemoveDependency:
		change, err = applyRemoveEdge(next, m)
	default:
		err = fmt.Errorf("%w: unknown operation %q", ErrValidation, m.Op)
	}
	if err != nil {
		return nil, Change{}, err
	}
	return next, change, nil
}

func applyCreate(m Mutation) (*Plan, Change, error) {
	if m.Seed == nil || m.SeedIDs == nil {
		return nil, Change{}, fmt.Errorf("%w: create_plan requires a seed", ErrValidation)
	}
	if err := m.Seed.Validate(); err != nil {
		return nil, Change{}, err
	}
	if len(m.SeedIDs.PhaseIDs) != len(m.Seed.Phases) || len(m.SeedIDs.TaskIDs) != len(m.Seed.Phases) {
		return nil, Change{}, fmt.Errorf("%w: seed id count mismatch", ErrValidation)
	}
	for i, ph := range m.Seed.Phases {
		if len(m.SeedIDs.TaskIDs[i]) != len(ph.Tasks) {
			return nil, Change{}, fmt.Errorf("%w: seed id count mismatch in phase %q", ErrValidation, ph.Label)
		}
	}

	p := &Plan{
		ID:         m.PlanID,
		AnalysisID: m.AnalysisID,
		Title:      m.PlanTitle,
		Status:     PlanActive,
		Version:    1,
		CreatedAt:  m.Timestamp,
		UpdatedAt:  m.Timestamp,
	}
	for i, gph := range m.Seed.Phases {
		ph := &Phase{
			ID:      m.SeedIDs.PhaseIDs[i],
			PlanID:  p.ID,
			Ordinal: i + 1,
			Label:   gph.Label,
		}
		for j, gt := range gph.Tasks {
			ph.Tasks = append(ph.Tasks, &Task{
				ID:            m.SeedIDs.TaskIDs[i][j],
				PhaseID:       ph.ID,
				Title:         gt.Title,
				Description:   gt.Description,
				EstimatedTime: gt.EstimatedTime,
				Resources:     gt.Resources,
				Order:         j,
				Status:        StatusNotStarted,
				CreatedBy:     OriginSystem,
				CreatedAt:     m.Timestamp,
				UpdatedAt:     m.Timestamp,
			})
		}
		p.Phases = append(p.Phases, ph)
	}

	return p, Change{TargetID: p.ID, After: marshal(p)}, nil
}

func applyAddTask(p *Plan, m Mutation) (Change, error) {
	if m.Title == "" {
		return Change{}, fmt.Errorf("%w: task title is required", ErrValidation)
	}
	ph := p.FindPhase(m.PhaseID)
	if ph == nil {
		return Change{}, NewNotFoundError("phase", m.PhaseID)
	}

	afterOrder := -1 // prepend
	switch {
	case m.AfterTaskID != "":
		anchor, anchorPhase := p.FindTask(m.AfterTaskID)
		if anchor == nil || anchor.Deleted || anchorPhase.ID != ph.ID {
			return Change{}, NewNotFoundError("task", m.AfterTaskID)
		}
		afterOrder = anchor.Order
	case !m.Prepend:
		afterOrder = len(ph.ActiveTasks()) - 1 // append
	}

	createdBy := m.CreatedBy
	if createdBy == "" {
		createdBy = OriginUser
	}
	t := &Task{
		ID:            m.TaskID,
		PhaseID:       ph.ID,
		Title:         m.Title,
		Description:   m.Description,
		EstimatedTime: m.EstimatedTime,
		Resources:     m.Resources,
		Status:        StatusNotStarted,
		CreatedBy:     createdBy,
		CreatedAt:     m.Timestamp,
		UpdatedAt:     m.Timestamp,
	}
	InsertTask(ph, t, afterOrder)
	return Change{TargetID: t.ID, After: marshal(t)}, nil
}

func applyEditTask(p *Plan, m Mutation) (Change, error) {
	t, _ := p.FindTask(m.TaskID)
	if t == nil || t.Deleted {
		return Change{}, NewNotFoundError("task", m.TaskID)
	}
	before := marshal(t)
	if m.NewTitle != nil {
		if *m.NewTitle == "" {
			return Change{}, fmt.Errorf("%w: task title cannot be empty", ErrValidation)
		}
		t.Title = *m.NewTitle
	}
	if m.NewDescription != nil {
		t.Description = *m.NewDescription
	}
	if m.NewEstimatedTime != nil {
		t.EstimatedTime = *m.NewEstimatedTime
	}
	if m.NewResources != nil {
		t.Resources = append([]string(nil), (*m.NewResources)...)
	}
	t.UpdatedAt = m.Timestamp
	return Change{TargetID: t.ID, Before: before, After: marshal(t)}, nil
}

func applySetStatus(p *Plan, m Mutation) (Change, error) {
	if !m.Status.Valid() {
		return Change{}, fmt.Errorf("%w: unknown status %q", ErrValidation, m.Status)
	}
	t, _ := p.FindTask(m.TaskID)
	if t == nil || t.Deleted {
		return Change{}, NewNotFoundError("task", m.TaskID)
	}

	// Moving a blocked task forward requires an explicit override,
	// which is recorded in history as a deliberate bypass.
	if (m.Status == StatusInProgress || m.Status == StatusCompleted) && !m.Override {
		if unsat := p.Unsatisfied(t.ID); len(unsat) > 0 {
			return Change{}, &BlockedError{TaskID: t.ID, Unsatisfied: unsat, TargetStatus: m.Status}
		}
	}

	before := marshal(t)
	t.Status = m.Status
	t.UpdatedAt = m.Timestamp
	return Change{TargetID: t.ID, Before: before, After: marshal(t)}, nil
}

func applyReorder(p *Plan, m Mutation) (Change, error) {
	ph := p.FindPhase(m.PhaseID)
	if ph == nil {
		return Change{}, NewNotFoundError("phase", m.PhaseID)
	}
	before := marshal(orderOf(ph))
	if err := ReorderTask(ph, m.TaskID, m.NewOrder); err != nil {
		return Change{}, err
	}
	return Change{TargetID: m.TaskID, Before: before, After: marshal(orderOf(ph))}, nil
}

func applyDeleteTask(p *Plan, m Mutation) (Change, error) {
	t, ph := p.FindTask(m.TaskID)
	if t == nil || t.Deleted {
		return Change{}, NewNotFoundError("task", m.TaskID)
	}

	// Edges touching the task are invalidated atomically with it.
	removed := DeletedTaskState{Task: t}
	kept := p.Edges[:0]
	for _, e := range p.Edges {
		if e.PrerequisiteID == t.ID || e.DependentID == t.ID {
			removed.Edges = append(removed.Edges, e)
			continue
		}
		kept = append(kept, e)
	}
	p.Edges = kept

	before := marshal(removed)
	if err := RemoveTask(ph, t.ID); err != nil {
		return Change{}, err
	}
	return Change{TargetID: t.ID, Before: before}, nil
}

func applyRestoreTask(p *Plan, m Mutation) (Change, error) {
	if m.Restore == nil || m.Restore.Task == nil {
		return Change{}, fmt.Errorf("%w: restore_task requires the deleted state", ErrValidation)
	}
	t, ph := p.FindTask(m.Restore.Task.ID)
	if t == nil || !t.Deleted {
		return Change{}, fmt.Errorf("%w: task %s is not deleted", ErrValidation, m.Restore.Task.ID)
	}

	t.Deleted = false
	t.UpdatedAt = m.Timestamp
	// Put the task back at its pre-deletion position, clamped to the
	// current phase length.
	if err := ReorderTask(ph, t.ID, m.Restore.Task.Order); err != nil {
		return Change{}, err
	}

	// Re-admit the edges that were invalidated with the task, skipping
	// any whose other endpoint has since been deleted or that would
	// now close a cycle.
	restored := DeletedTaskState{Task: t}
	for _, e := range m.Restore.Edges {
		if err := p.CanAddEdge(e.PrerequisiteID, e.DependentID); err != nil {
			continue
		}
		ne := *e
		p.Edges = append(p.Edges, &ne)
		restored.Edges = append(restored.Edges, &ne)
	}
	return Change{TargetID: t.ID, After: marshal(restored)}, nil
}

func applyAddEdge(p *Plan, m Mutation) (Change, error) {
	if err := p.CanAddEdge(m.PrerequisiteID, m.TaskID); err != nil {
		return Change{}, err
	}
	// Re-admitting an existing edge keeps the original; appending a
	// second copy of the same pair would collide in the store.
	for _, e := range p.Edges {
		if e.PrerequisiteID == m.PrerequisiteID && e.DependentID == m.TaskID {
			return Change{TargetID: e.ID, After: marshal(e)}, nil
		}
	}
	e := &Edge{
		ID:             m.EdgeID,
		PrerequisiteID: m.PrerequisiteID,
		DependentID:    m.TaskID,
		CreatedAt:      m.Timestamp,
	}
	p.Edges = append(p.Edges, e)
	return Change{TargetID: e.ID, After: marshal(e)}, nil
}

func applyRemoveEdge(p *Plan, m Mutation) (Change, error) {
	for i, e := range p.Edges {
		if e.ID == m.EdgeID {
			before := marshal(e)
			p.Edges = append(p.Edges[:i], p.Edges[i+1:]...)
			return Change{TargetID: e.ID, Before: before}, nil
		}
	}
	return Change{}, NewNotFoundError("dependency", m.EdgeID)
}

func orderOf(ph *Phase) phaseOrder {
	po := phaseOrder{PhaseID: ph.ID}
	for _, t := range sortedActive(ph) {
		po.TaskIDs = append(po.TaskIDs, t.ID)
	}
	return po
}
