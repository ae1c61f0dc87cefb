// Package render formats plans, progress and history for the terminal.
package render

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/joss/actionplan/internal/export"
	"github.com/joss/actionplan/internal/history"
	"github.com/joss/actionplan/internal/plan"
)

// Renderer handles output formatting.
type Renderer struct {
	pretty bool
	width  int
}

// New creates a renderer. Pretty output uses color and unicode; plain
// output stays grep-friendly.
func New(pretty bool) *Renderer {
	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 20 {
		width = w
	}
	return &Renderer{pretty: pretty, width: width}
}

func statusMark(s plan.Status, pretty bool) string {
	if !pretty {
		switch s {
		case plan.StatusCompleted:
			return "[x]"
		case plan.StatusInProgress:
			return "[~]"
		case plan.StatusSkipped:
			return "[-]"
		}
		return "[ ]"
	}
	switch s {
	case plan.StatusCompleted:
		return color.GreenString("✓")
	case plan.StatusInProgress:
		return color.YellowString("◐")
	case plan.StatusSkipped:
		return color.HiBlackString("⊘")
	}
	return "○"
}

// Plan formats the full plan with dependencies resolved to titles.
func (r *Renderer) Plan(p *plan.Plan) string {
	snap := export.Build(p, export.Options{IncludeCompleted: true, IncludeSkipped: true})

	var sb strings.Builder
	title := fmt.Sprintf("%s  (v%d, %d%%)", snap.Title, snap.Version, snap.OverallPercent)
	if r.pretty {
		sb.WriteString(color.CyanString(title) + "\n")
		sb.WriteString(strings.Repeat("─", min(r.width, 60)) + "\n")
	} else {
		sb.WriteString(title + "\n")
	}
	if p.Status == plan.PlanArchived {
		sb.WriteString(color.HiBlackString("archived") + "\n")
	}

	for _, ph := range snap.Phases {
		r.phaseHeader(&sb, ph)
		for _, t := range ph.Tasks {
			mark := statusMark(t.Status, r.pretty)
			fmt.Fprintf(&sb, "  %s %s", mark, t.Title)
			if t.EstimatedTime != "" {
				sb.WriteString(color.HiBlackString(" (" + t.EstimatedTime + ")"))
			}
			sb.WriteString("\n")
			for _, d := range t.DependsOn {
				fmt.Fprintf(&sb, "      needs: %s\n", d.Title)
			}
		}
	}
	return sb.String()
}

func (r *Renderer) phaseHeader(sb *strings.Builder, ph export.PhaseSection) {
	header := fmt.Sprintf("%s  %d/%d", ph.Label, ph.Completed, ph.Total)
	if r.pretty {
		fmt.Fprintf(sb, "\n%s %s\n", color.MagentaString("▸"), header)
	} else {
		fmt.Fprintf(sb, "\n%s\n", header)
	}
}

// Progress formats a snapshot as per-phase bars.
func (r *Renderer) Progress(snap plan.ProgressSnapshot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Overall: %d%% (%d/%d tasks)\n", snap.OverallPercent, snap.CompletedTasks, snap.TotalTasks)
	for _, pc := range snap.PerPhase {
		fmt.Fprintf(&sb, "  %-24s %s %3.0f%%\n", truncate(pc.Label, 24), r.bar(pc.Percent), pc.Percent)
	}
	return sb.String()
}

// Trend formats the persisted progress history, oldest first.
func (r *Renderer) Trend(snaps []plan.ProgressSnapshot) string {
	if len(snaps) == 0 {
		return "No progress recorded\n"
	}
	var sb strings.Builder
	for _, s := range snaps {
		fmt.Fprintf(&sb, "v%-4d %s %3d%%  %s\n",
			s.Version, r.bar(float64(s.OverallPercent)), s.OverallPercent,
			color.HiBlackString(s.CreatedAt.Format("2006-01-02 15:04")))
	}
	return sb.String()
}

// History formats ledger entries, oldest first.
func (r *Renderer) History(entries []history.Entry) string {
	if len(entries) == 0 {
		return "No history\n"
	}
	var sb strings.Builder
	for _, e := range entries {
		ts := e.CreatedAt.Format("2006-01-02 15:04:05")
		line := fmt.Sprintf("v%-4d %s  %-18s %s", e.Version, ts, e.Op, e.ActorID)
		if e.Override {
			line += color.YellowString("  [override]")
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

// Event formats one sync event for streaming output.
func (r *Renderer) Event(version int64, op plan.Op, at time.Time, phaseCompleted []string) string {
	line := fmt.Sprintf("%s v%d %s", at.Format("15:04:05"), version, op)
	if len(phaseCompleted) > 0 {
		line += color.GreenString(fmt.Sprintf("  phase completed (%d)", len(phaseCompleted)))
	}
	return line
}

func (r *Renderer) bar(percent float64) string {
	const width = 20
	filled := int(percent / 100 * width)
	if filled > width {
		filled = width
	}
	if r.pretty {
		return color.GreenString(strings.Repeat("█", filled)) + color.HiBlackString(strings.Repeat("░", width-filled))
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
