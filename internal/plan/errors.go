package plan

import (
	"errors"
	"fmt"
)

// Rule violations and concurrency failures surfaced to callers.
// All carry enough context for the caller to construct a corrective
// retry; none is silently coerced into a best-effort mutation.
var (
	// ErrNotFound indicates the plan, task or edge does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation error")

	// ErrSelfReference indicates a task depending on itself.
	ErrSelfReference = errors.New("task cannot depend on itself")

	// ErrWouldCycle indicates the edge would close a directed cycle.
	ErrWouldCycle = errors.New("dependency would create a cycle")

	// ErrCrossPlan indicates the edge endpoints belong to different plans.
	ErrCrossPlan = errors.New("dependency crosses plan boundary")

	// ErrDependencyNotSatisfied indicates a status change on a task
	// whose prerequisites are not all completed or skipped.
	ErrDependencyNotSatisfied = errors.New("prerequisite tasks not satisfied")

	// ErrVersionConflict indicates the caller's expected version is stale.
	ErrVersionConflict = errors.New("version conflict")

	// ErrValidationTimeout indicates validation exceeded its deadline.
	// Safe to retry.
	ErrValidationTimeout = errors.New("validation timed out")

	// ErrPlanArchived indicates a mutation against an archived plan.
	ErrPlanArchived = errors.New("plan is archived")
)

// NotFoundError wraps ErrNotFound with entity details.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFoundError creates a typed not found error.
func NewNotFoundError(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// VersionConflictError wraps ErrVersionConflict with the versions
// involved. Current carries the plan state the conflict was detected
// against so the caller can re-apply intent without a second fetch.
type VersionConflictError struct {
	PlanID   string
	Expected int64
	Actual   int64
	Current  *Plan
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("plan %s: version conflict: expected %d, have %d", e.PlanID, e.Expected, e.Actual)
}

func (e *VersionConflictError) Unwrap() error { return ErrVersionConflict }

// CycleError wraps ErrWouldCycle with the offending edge and the
// existing path that would be closed into a cycle.
type CycleError struct {
	PrerequisiteID string
	DependentID    string
	Path           []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("edge %s -> %s would create a cycle (path %v)", e.PrerequisiteID, e.DependentID, e.Path)
}

func (e *CycleError) Unwrap() error { return ErrWouldCycle }

// BlockedError wraps ErrDependencyNotSatisfied with the incomplete
// prerequisites blocking the transition.
type BlockedError struct {
	TaskID       string
	Unsatisfied  []string
	TargetStatus Status
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("task %s cannot move to %s: prerequisites %v not satisfied", e.TaskID, e.TargetStatus, e.Unsatisfied)
}

func (e *BlockedError) Unwrap() error { return ErrDependencyNotSatisfied }

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if an error is a version conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
