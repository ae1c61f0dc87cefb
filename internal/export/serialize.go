package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

func marshalJSON(snap *Snapshot) ([]byte, error) {
	return json.MarshalIndent(snap, "", "  ")
}

// marshalCSV flattens the snapshot to one row per task. Phase rollups
// travel on every row so the file stands alone in a spreadsheet.
func marshalCSV(snap *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{
		"plan_id", "plan_title", "version",
		"phase", "phase_percent",
		"task_id", "position", "title", "status",
		"estimated_time", "depends_on",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, ph := range snap.Phases {
		for _, t := range ph.Tasks {
			depTitles := make([]string, len(t.DependsOn))
			for i, d := range t.DependsOn {
				depTitles[i] = d.Title
			}
			row := []string{
				snap.PlanID, snap.Title, strconv.FormatInt(snap.Version, 10),
				ph.Label, strconv.FormatFloat(ph.Percent, 'f', 1, 64),
				t.ID, strconv.Itoa(t.Position), t.Title, string(t.Status),
				t.EstimatedTime, strings.Join(depTitles, "; "),
			}
			if err := w.Write(row); err != nil {
				return nil, err
			}
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}

func marshalMarkdown(snap *Snapshot) ([]byte, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", snap.Title)
	fmt.Fprintf(&b, "Overall progress: %d%% (version %d)\n\n", snap.OverallPercent, snap.Version)

	for _, ph := range snap.Phases {
		fmt.Fprintf(&b, "## %s (%d/%d, %.0f%%)\n\n", ph.Label, ph.Completed, ph.Total, ph.Percent)
		if len(ph.Tasks) == 0 {
			b.WriteString("_No tasks to show._\n\n")
			continue
		}
		for _, t := range ph.Tasks {
			mark := " "
			switch t.Status {
			case "completed":
				mark = "x"
			case "skipped":
				mark = "-"
			}
			fmt.Fprintf(&b, "- [%s] %s", mark, t.Title)
			if t.EstimatedTime != "" {
				fmt.Fprintf(&b, " (%s)", t.EstimatedTime)
			}
			b.WriteString("\n")
			for _, d := range t.DependsOn {
				fmt.Fprintf(&b, "  - depends on: %s\n", d.Title)
			}
		}
		b.WriteString("\n")
	}

	return []byte(b.String()), nil
}
