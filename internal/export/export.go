// Package export produces self-contained snapshots of a plan for
// external consumers. An export resolves dependency IDs to titles and
// attaches progress rollups, so the output is readable without access
// to the engine.
package export

import (
	"fmt"
	"time"

	"github.com/joss/actionplan/internal/plan"
)

// Format selects the export serialization.
type Format string

const (
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

// ParseFormat maps a user-supplied name to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatCSV, FormatMarkdown:
		return Format(s), nil
	case "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("%w: unknown export format %q", plan.ErrValidation, s)
}

// Options filter the exported task set. Dependencies on filtered-out
// tasks still resolve: the referenced title is included even when the
// task row itself is not.
type Options struct {
	IncludeCompleted bool
	IncludeSkipped   bool
}

// TaskRow is one exported task with its prerequisites resolved.
type TaskRow struct {
	ID            string      `json:"id"`
	Title         string      `json:"title"`
	Description   string      `json:"description,omitempty"`
	EstimatedTime string      `json:"estimated_time,omitempty"`
	Resources     []string    `json:"resources,omitempty"`
	Position      int         `json:"position"`
	Status        plan.Status `json:"status"`
	DependsOn     []DepRef    `json:"depends_on,omitempty"`
}

// DepRef names a prerequisite by ID and title.
type DepRef struct {
	TaskID string `json:"task_id"`
	Title  string `json:"title"`
}

// PhaseSection groups a phase's exported tasks with its rollup.
type PhaseSection struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Total     int       `json:"total"`
	Completed int       `json:"completed"`
	Percent   float64   `json:"percent"`
	Tasks     []TaskRow `json:"tasks"`
}

// Snapshot is the full export payload.
type Snapshot struct {
	PlanID         string          `json:"plan_id"`
	Title          string          `json:"title"`
	Version        int64           `json:"version"`
	Status         plan.PlanStatus `json:"status"`
	OverallPercent int             `json:"overall_percent"`
	ExportedAt     time.Time       `json:"exported_at"`
	Phases         []PhaseSection  `json:"phases"`
}

// Build projects a plan into an export snapshot.
func Build(p *plan.Plan, opts Options) *Snapshot {
	progress := plan.Recompute(p)
	rollup := make(map[string]plan.PhaseCompletion, len(progress.PerPhase))
	for _, pc := range progress.PerPhase {
		rollup[pc.PhaseID] = pc
	}

	titles := make(map[string]string, p.TaskCount())
	for _, ph := range p.Phases {
		for _, t := range ph.ActiveTasks() {
			titles[t.ID] = t.Title
		}
	}

	deps := make(map[string][]DepRef)
	for _, e := range p.Edges {
		title, ok := titles[e.PrerequisiteID]
		if !ok {
			continue
		}
		deps[e.DependentID] = append(deps[e.DependentID], DepRef{
			TaskID: e.PrerequisiteID,
			Title:  title,
		})
	}

	snap := &Snapshot{
		PlanID:         p.ID,
		Title:          p.Title,
		Version:        p.Version,
		Status:         p.Status,
		OverallPercent: progress.OverallPercent,
		ExportedAt:     time.Now().UTC(),
	}

	for _, ph := range p.Phases {
		pc := rollup[ph.ID]
		section := PhaseSection{
			ID:        ph.ID,
			Label:     ph.Label,
			Total:     pc.Total,
			Completed: pc.Completed,
			Percent:   pc.Percent,
		}
		for _, t := range ph.ActiveTasks() {
			if t.Status == plan.StatusCompleted && !opts.IncludeCompleted {
				continue
			}
			if t.Status == plan.StatusSkipped && !opts.IncludeSkipped {
				continue
			}
			section.Tasks = append(section.Tasks, TaskRow{
				ID:            t.ID,
				Title:         t.Title,
				Description:   t.Description,
				EstimatedTime: t.EstimatedTime,
				Resources:     t.Resources,
				Position:      t.Order,
				Status:        t.Status,
				DependsOn:     deps[t.ID],
			})
		}
		snap.Phases = append(snap.Phases, section)
	}

	return snap
}

// Serialize renders a snapshot in the requested format.
func Serialize(snap *Snapshot, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return marshalJSON(snap)
	case FormatCSV:
		return marshalCSV(snap)
	case FormatMarkdown:
		return marshalMarkdown(snap)
	}
	return nil, fmt.Errorf("%w: unknown export format %q", plan.ErrValidation, format)
}
