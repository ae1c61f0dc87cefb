package history

import (
	"encoding/json"
	"fmt"

	"github.com/joss/actionplan/internal/plan"
)

// ErrNotInvertible indicates the entry has no inverse mutation.
var ErrNotInvertible = fmt.Errorf("entry cannot be inverted")

// Invert builds the forward mutation that undoes the entry. Undo is a
// new versioned mutation appended to the same stream, never a rollback
// of history. The returned mutation still passes through the sequencer
// like any other request.
func Invert(e *Entry, actorID string) (plan.Mutation, error) {
	m := plan.Mutation{ActorID: actorID}

	switch e.Op {
	case plan.OpAddTask:
		m.Op = plan.OpDeleteTask
		m.TaskID = e.TargetID

	case plan.OpDeleteTask:
		var ds plan.DeletedTaskState
		if err := json.Unmarshal(e.Before, &ds); err != nil {
			return m, fmt.Errorf("decode deleted state: %w", err)
		}
		m.Op = plan.OpRestoreTask
		m.TaskID = e.TargetID
		m.Restore = &ds

	case plan.OpEditTask:
		var before plan.Task
		if err := json.Unmarshal(e.Before, &before); err != nil {
			return m, fmt.Errorf("decode task state: %w", err)
		}
		m.Op = plan.OpEditTask
		m.TaskID = e.TargetID
		m.NewTitle = &before.Title
		m.NewDescription = &before.Description
		m.NewEstimatedTime = &before.EstimatedTime
		res := append([]string(nil), before.Resources...)
		m.NewResources = &res

	case plan.OpSetStatus:
		var before plan.Task
		if err := json.Unmarshal(e.Before, &before); err != nil {
			return m, fmt.Errorf("decode task state: %w", err)
		}
		m.Op = plan.OpSetStatus
		m.TaskID = e.TargetID
		m.Status = before.Status
		// Reverting must not be blocked by the dependency gate the
		// original transition already passed.
		m.Override = true

	case plan.OpReorderTask:
		var before struct {
			PhaseID string   `json:"phase_id"`
			TaskIDs []string `json:"task_ids"`
		}
		if err := json.Unmarshal(e.Before, &before); err != nil {
			return m, fmt.Errorf("decode phase order: %w", err)
		}
		pos := -1
		for i, id := range before.TaskIDs {
			if id == e.TargetID {
				pos = i
				break
			}
		}
		if pos < 0 {
			return m, fmt.Errorf("%w: task %s missing from prior order", ErrNotInvertible, e.TargetID)
		}
		m.Op = plan.OpReorderTask
		m.PhaseID = before.PhaseID
		m.TaskID = e.TargetID
		m.NewOrder = pos

	case plan.OpAddDependency:
		m.Op = plan.OpRemoveDependency
		m.EdgeID = e.TargetID

	case plan.OpRemoveDependency:
		var edge plan.Edge
		if err := json.Unmarshal(e.Before, &edge); err != nil {
			return m, fmt.Errorf("decode edge state: %w", err)
		}
		m.Op = plan.OpAddDependency
		m.EdgeID = edge.ID
		m.PrerequisiteID = edge.PrerequisiteID
		m.TaskID = edge.DependentID

	case plan.OpRestoreTask:
		m.Op = plan.OpDeleteTask
		m.TaskID = e.TargetID

	case plan.OpArchivePlan:
		m.Op = plan.OpUnarchivePlan

	case plan.OpUnarchivePlan:
		m.Op = plan.OpArchivePlan

	default:
		// create_plan has no inverse; plans are archived, not destroyed.
		return m, fmt.Errorf("%w: %s", ErrNotInvertible, e.Op)
	}

	return m, nil
}
