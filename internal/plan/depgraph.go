package plan

// Dependency validation. The edge set plus the candidate edge is
// treated as a directed graph over all tasks in the plan; a candidate
// prerequisite -> dependent edge is rejected when prerequisite is
// already reachable from dependent, which would close a cycle.
// Checks are O(V+E); plans hold tens of tasks so this is cheap enough
// to run on every insertion.

// adjacency builds prerequisite -> dependents adjacency from live edges.
// Edges whose endpoints were deleted are excluded.
func (p *Plan) adjacency() map[string][]string {
	adj := make(map[string][]string, len(p.Edges))
	for _, e := range p.Edges {
		adj[e.PrerequisiteID] = append(adj[e.PrerequisiteID], e.DependentID)
	}
	return adj
}

// reachPath returns a path from src to dst over the adjacency, or nil.
func reachPath(adj map[string][]string, src, dst string) []string {
	seen := map[string]bool{src: true}
	// DFS keeping the current path for error reporting.
	var walk func(node string, path []string) []string
	walk = func(node string, path []string) []string {
		path = append(path, node)
		if node == dst {
			return path
		}
		for _, next := range adj[node] {
			if seen[next] {
				continue
			}
			seen[next] = true
			if found := walk(next, path); found != nil {
				return found
			}
		}
		return nil
	}
	return walk(src, nil)
}

// CanAddEdge validates a candidate prerequisite -> dependent edge
// against self-reference, plan membership and acyclicity. A nil
// return means the edge is admissible against the current state.
func (p *Plan) CanAddEdge(prerequisiteID, dependentID string) error {
	if prerequisiteID == dependentID {
		return ErrSelfReference
	}
	pre, _ := p.FindTask(prerequisiteID)
	dep, _ := p.FindTask(dependentID)
	if pre == nil || dep == nil || pre.Deleted || dep.Deleted {
		// A task outside this plan is indistinguishable from a
		// nonexistent one at this layer; both are cross-plan here.
		return ErrCrossPlan
	}
	for _, e := range p.Edges {
		if e.PrerequisiteID == prerequisiteID && e.DependentID == dependentID {
			return nil // already present, admitting it again is a no-op
		}
	}
	if path := reachPath(p.adjacency(), dependentID, prerequisiteID); path != nil {
		return &CycleError{
			PrerequisiteID: prerequisiteID,
			DependentID:    dependentID,
			Path:           path,
		}
	}
	return nil
}

// Prerequisites returns the IDs of tasks the given task depends on.
func (p *Plan) Prerequisites(taskID string) []string {
	var out []string
	for _, e := range p.Edges {
		if e.DependentID == taskID {
			out = append(out, e.PrerequisiteID)
		}
	}
	return out
}

// Dependents returns the IDs of tasks depending on the given task.
func (p *Plan) Dependents(taskID string) []string {
	var out []string
	for _, e := range p.Edges {
		if e.PrerequisiteID == taskID {
			out = append(out, e.DependentID)
		}
	}
	return out
}

// satisfied reports whether a prerequisite status unblocks dependents.
// Skipped counts as satisfied: a deliberately skipped step should not
// hold its dependents hostage.
func satisfied(s Status) bool {
	return s == StatusCompleted || s == StatusSkipped
}

// Unsatisfied returns the prerequisites of taskID that are not yet
// completed or skipped. Deleted prerequisites no longer block.
func (p *Plan) Unsatisfied(taskID string) []string {
	var out []string
	for _, id := range p.Prerequisites(taskID) {
		t, _ := p.FindTask(id)
		if t == nil || t.Deleted {
			continue
		}
		if !satisfied(t.Status) {
			out = append(out, id)
		}
	}
	return out
}

// IsUnblocked reports whether every prerequisite of the task is
// completed or skipped.
func (p *Plan) IsUnblocked(taskID string) bool {
	return len(p.Unsatisfied(taskID)) == 0
}
