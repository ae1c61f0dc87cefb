package plan

import "sort"

// Order sequencing. Task orders within a phase are dense zero-based
// integers. Every structural change renumbers the whole phase in one
// pass so no intermediate state ever carries a gap or a duplicate.

// renumber rewrites the live tasks' orders to 0..N-1. The slice must
// already be in the desired sequence. Deleted tasks keep their last
// order; they are invisible to the sequencer.
func renumber(tasks []*Task) {
	i := 0
	for _, t := range tasks {
		if t.Deleted {
			continue
		}
		t.Order = i
		i++
	}
}

// sortedActive returns the phase's live tasks ordered by their current
// positions.
func sortedActive(ph *Phase) []*Task {
	tasks := ph.ActiveTasks()
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].Order < tasks[j].Order })
	return tasks
}

// InsertTask places t into the phase after the task with order
// afterOrder (-1 prepends) and renumbers. Returns the assigned order.
func InsertTask(ph *Phase, t *Task, afterOrder int) int {
	live := sortedActive(ph)
	pos := len(live)
	if afterOrder < 0 {
		pos = 0
	} else if afterOrder < len(live)-1 {
		pos = afterOrder + 1
	}

	seq := make([]*Task, 0, len(live)+1)
	seq = append(seq, live[:pos]...)
	seq = append(seq, t)
	seq = append(seq, live[pos:]...)
	renumber(seq)

	ph.Tasks = append(ph.Tasks, t)
	return t.Order
}

// ReorderTask moves the task to newOrder within its phase and
// renumbers in a single pass. Out-of-range targets clamp to the ends;
// a concurrent occupant of the target position is pushed to the next
// slot rather than rejected.
func ReorderTask(ph *Phase, taskID string, newOrder int) error {
	live := sortedActive(ph)
	idx := -1
	for i, t := range live {
		if t.ID == taskID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return NewNotFoundError("task", taskID)
	}

	moved := live[idx]
	rest := append(append([]*Task{}, live[:idx]...), live[idx+1:]...)

	if newOrder < 0 {
		newOrder = 0
	}
	if newOrder > len(rest) {
		newOrder = len(rest)
	}

	seq := make([]*Task, 0, len(live))
	seq = append(seq, rest[:newOrder]...)
	seq = append(seq, moved)
	seq = append(seq, rest[newOrder:]...)
	renumber(seq)
	return nil
}

// RemoveTask soft-deletes the task and renumbers the remaining live
// tasks to close the gap.
func RemoveTask(ph *Phase, taskID string) error {
	var victim *Task
	for _, t := range ph.Tasks {
		if t.ID == taskID && !t.Deleted {
			victim = t
			break
		}
	}
	if victim == nil {
		return NewNotFoundError("task", taskID)
	}
	victim.Deleted = true
	renumber(sortedActive(ph))
	return nil
}

// CheckDense verifies the phase's live orders are exactly {0..N-1}.
// Used by tests and the self-check command.
func CheckDense(ph *Phase) bool {
	live := sortedActive(ph)
	for i, t := range live {
		if t.Order != i {
			return false
		}
	}
	return true
}
