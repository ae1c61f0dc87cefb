package plan

import "time"

// Op identifies a mutation kind.
type Op string

const (
	OpCreatePlan       Op = "create_plan"
	OpArchivePlan      Op = "archive_plan"
	OpAddTask          Op = "add_task"
	OpEditTask         Op = "edit_task"
	OpSetStatus        Op = "set_status"
	OpReorderTask      Op = "reorder_task"
	OpDeleteTask       Op = "delete_task"
	OpAddDependency    Op = "add_dependency"
	OpRemoveDependency Op = "remove_dependency"

	// Inverse operations used by undo. They are ordinary forward
	// mutations: undo never rewrites history, it appends to it.
	OpRestoreTask   Op = "restore_task"
	OpUnarchivePlan Op = "unarchive_plan"
)

// Mutation is one intent against a plan. The sequencer resolves IDs
// and the timestamp before applying, so a recorded mutation replays
// byte-for-byte: applying the same mutation to the same state always
// yields the same result.
type Mutation struct {
	Op      Op     `json:"op"`
	ActorID string `json:"actor_id"`

	// Resolved by the sequencer before application.
	Timestamp time.Time `json:"timestamp"`

	// Targets.
	PhaseID string `json:"phase_id,omitempty"`
	TaskID  string `json:"task_id,omitempty"`
	EdgeID  string `json:"edge_id,omitempty"`

	// add_task payload. TaskID is pre-assigned by the sequencer.
	Title         string   `json:"title,omitempty"`
	Description   string   `json:"description,omitempty"`
	EstimatedTime string   `json:"estimated_time,omitempty"`
	Resources     []string `json:"resources,omitempty"`
	AfterTaskID   string   `json:"after_task_id,omitempty"`
	Prepend       bool     `json:"prepend,omitempty"`
	CreatedBy     Origin   `json:"created_by,omitempty"`

	// edit_task patch fields; nil means unchanged.
	NewTitle         *string   `json:"new_title,omitempty"`
	NewDescription   *string   `json:"new_description,omitempty"`
	NewEstimatedTime *string   `json:"new_estimated_time,omitempty"`
	NewResources     *[]string `json:"new_resources,omitempty"`

	// set_status payload. Override records a deliberate bypass of the
	// dependency gate; the bypass lands in history with the mutation.
	Status   Status `json:"status,omitempty"`
	Override bool   `json:"override,omitempty"`

	// reorder_task payload.
	NewOrder int `json:"new_order,omitempty"`

	// add_dependency payload. EdgeID is pre-assigned by the sequencer.
	PrerequisiteID string `json:"prerequisite_id,omitempty"`

	// restore_task payload: the before-image captured by delete_task.
	Restore *DeletedTaskState `json:"restore,omitempty"`

	// create_plan payload.
	PlanID     string         `json:"plan_id,omitempty"`
	PlanTitle  string         `json:"plan_title,omitempty"`
	AnalysisID string         `json:"analysis_id,omitempty"`
	Seed       *GeneratedPlan `json:"seed,omitempty"`
	SeedIDs    *SeedIDs       `json:"seed_ids,omitempty"`
}

// SeedIDs carries the pre-assigned identifiers for a seeded plan so
// replaying the creation mutation reproduces the exact same state.
type SeedIDs struct {
	PhaseIDs []string   `json:"phase_ids"`
	TaskIDs  [][]string `json:"task_ids"`
}

// AffectsProgress reports whether the operation can change completion
// percentages. Content edits and reorders are no-ops for progress.
func (m Mutation) AffectsProgress() bool {
	switch m.Op {
	case OpSetStatus, OpAddTask, OpDeleteTask, OpRestoreTask, OpCreatePlan:
		return true
	}
	return false
}
