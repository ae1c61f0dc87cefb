package graph

import (
	"context"
	"fmt"

	"github.com/joss/actionplan/internal/plan"
)

// Projector mirrors a plan's task graph into the database. Each Sync
// replaces the plan's subgraph wholesale: node and relationship counts
// are small enough that incremental updates are not worth the
// bookkeeping.
type Projector struct {
	d Driver
}

// NewProjector creates a projector over the given driver.
func NewProjector(d Driver) *Projector {
	return &Projector{d: d}
}

// Sync projects the plan. Deleted tasks are left out, so edges whose
// endpoint was removed disappear with it.
func (pr *Projector) Sync(ctx context.Context, p *plan.Plan) error {
	if err := pr.d.ExecuteWrite(ctx,
		`MATCH (n {plan_id: $plan_id}) DETACH DELETE n`,
		map[string]any{"plan_id": p.ID}); err != nil {
		return fmt.Errorf("clear projection: %w", err)
	}

	if err := pr.d.ExecuteWrite(ctx,
		`CREATE (p:Plan {id: $id, plan_id: $id, title: $title, version: $version, status: $status})`,
		map[string]any{
			"id":      p.ID,
			"title":   p.Title,
			"version": p.Version,
			"status":  string(p.Status),
		}); err != nil {
		return fmt.Errorf("project plan node: %w", err)
	}

	for _, ph := range p.Phases {
		if err := pr.d.ExecuteWrite(ctx,
			`MATCH (p:Plan {id: $plan_id})
			 CREATE (p)-[:HAS_PHASE]->(:Phase {id: $id, plan_id: $plan_id, label: $label, ordinal: $ordinal})`,
			map[string]any{
				"plan_id": p.ID,
				"id":      ph.ID,
				"label":   ph.Label,
				"ordinal": ph.Ordinal,
			}); err != nil {
			return fmt.Errorf("project phase %s: %w", ph.ID, err)
		}
		for _, t := range ph.ActiveTasks() {
			if err := pr.d.ExecuteWrite(ctx,
				`MATCH (ph:Phase {id: $phase_id})
				 CREATE (ph)-[:HAS_TASK]->(:Task {id: $id, plan_id: $plan_id, title: $title, status: $status, position: $position})`,
				map[string]any{
					"phase_id": ph.ID,
					"plan_id":  p.ID,
					"id":       t.ID,
					"title":    t.Title,
					"status":   string(t.Status),
					"position": t.Order,
				}); err != nil {
				return fmt.Errorf("project task %s: %w", t.ID, err)
			}
		}
	}

	for _, e := range p.Edges {
		if err := pr.d.ExecuteWrite(ctx,
			`MATCH (pre:Task {id: $pre}), (dep:Task {id: $dep})
			 CREATE (dep)-[:DEPENDS_ON {id: $id}]->(pre)`,
			map[string]any{
				"id":  e.ID,
				"pre": e.PrerequisiteID,
				"dep": e.DependentID,
			}); err != nil {
			return fmt.Errorf("project edge %s: %w", e.ID, err)
		}
	}

	return nil
}

// BlockedTasks returns IDs of tasks with at least one unsatisfied
// prerequisite, computed in the graph.
func (pr *Projector) BlockedTasks(ctx context.Context, planID string) ([]string, error) {
	records, err := pr.d.Execute(ctx,
		`MATCH (t:Task {plan_id: $plan_id})-[:DEPENDS_ON]->(pre:Task)
		 WHERE NOT pre.status IN ['completed', 'skipped']
		 RETURN DISTINCT t.id AS id ORDER BY id`,
		map[string]any{"plan_id": planID})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, GetString(r, "id"))
	}
	return out, nil
}

// LongestChain returns the length of the longest prerequisite chain in
// the plan. Chains bound how parallel the remaining work can be.
func (pr *Projector) LongestChain(ctx context.Context, planID string) (int, error) {
	records, err := pr.d.Execute(ctx,
		`MATCH path = (t:Task {plan_id: $plan_id})-[:DEPENDS_ON*]->(:Task)
		 RETURN coalesce(max(length(path)), 0) AS depth`,
		map[string]any{"plan_id": planID})
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	return GetInt(records[0], "depth"), nil
}
