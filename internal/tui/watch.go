// Package tui provides a live terminal view of a plan using Bubble Tea.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joss/actionplan/internal/engine"
	"github.com/joss/actionplan/internal/plan"
	"github.com/joss/actionplan/internal/syncer"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginLeft(2)

	phaseStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	alertStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)
)

// Model is the watch view: one plan, updated live from the engine's
// event broker.
type Model struct {
	engine *engine.Engine
	planID string

	plan     *plan.Plan
	progress plan.ProgressSnapshot
	sub      *syncer.Subscription

	lastEvent   string
	phaseNotice string
	noticeAt    time.Time

	spinner  spinner.Model
	width    int
	err      error
	quitting bool
}

type planMsg *plan.Plan
type eventMsg syncer.Event
type closedMsg struct{}
type errMsg error

// New creates a watch model for the given plan.
func New(eng *engine.Engine, planID string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return Model{
		engine:  eng,
		planID:  planID,
		sub:     eng.Broker().Subscribe(planID),
		spinner: s,
		width:   80,
	}
}

// Run starts the watch view and blocks until it exits.
func Run(eng *engine.Engine, planID string) error {
	p := tea.NewProgram(New(eng, planID), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchPlan, m.waitEvent)
}

func (m Model) fetchPlan() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p, err := m.engine.GetPlan(ctx, m.planID)
	if err != nil {
		return errMsg(err)
	}
	return planMsg(p)
}

func (m Model) waitEvent() tea.Msg {
	ev, open := <-m.sub.C
	if !open {
		return closedMsg{}
	}
	return eventMsg(ev)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			m.engine.Broker().Unsubscribe(m.sub)
			return m, tea.Quit
		case "r":
			return m, m.fetchPlan
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case planMsg:
		m.plan = msg
		m.progress = plan.Recompute(msg)
		m.err = nil

	case eventMsg:
		ev := syncer.Event(msg)
		if ev.Gap {
			// Missed events: the snapshot we hold is stale.
			m.lastEvent = "resyncing after missed events"
			return m, tea.Batch(m.fetchPlan, m.waitEvent)
		}
		m.lastEvent = fmt.Sprintf("v%d %s", ev.Version, ev.Op)
		if ev.Snapshot != nil {
			m.progress = *ev.Snapshot
		}
		if len(ev.PhaseCompleted) > 0 {
			m.phaseNotice = fmt.Sprintf("Phase complete! (%d)", len(ev.PhaseCompleted))
			m.noticeAt = time.Now()
		}
		return m, tea.Batch(m.fetchPlan, m.waitEvent)

	case closedMsg:
		m.quitting = true
		return m, tea.Quit

	case errMsg:
		m.err = msg

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.plan == nil {
		if m.err != nil {
			return fmt.Sprintf("\n  error: %v\n\n  press q to quit\n", m.err)
		}
		return fmt.Sprintf("\n %s loading plan %s\n", m.spinner.View(), m.planID)
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(fmt.Sprintf("%s  v%d  %d%%",
		m.plan.Title, m.plan.Version, m.progress.OverallPercent)) + "\n\n")

	if m.plan.Status == plan.PlanArchived {
		sb.WriteString(dimStyle.Render("  archived") + "\n\n")
	}

	rollup := make(map[string]plan.PhaseCompletion, len(m.progress.PerPhase))
	for _, pc := range m.progress.PerPhase {
		rollup[pc.PhaseID] = pc
	}

	for _, ph := range m.plan.Phases {
		pc := rollup[ph.ID]
		sb.WriteString("  " + phaseStyle.Render(ph.Label) +
			dimStyle.Render(fmt.Sprintf("  %d/%d", pc.Completed, pc.Total)) + "\n")
		sb.WriteString("  " + bar(pc.Percent, 30) + "\n")
		for _, t := range ph.ActiveTasks() {
			sb.WriteString("    " + taskLine(t, m.plan) + "\n")
		}
		sb.WriteString("\n")
	}

	if m.phaseNotice != "" && time.Since(m.noticeAt) < 10*time.Second {
		sb.WriteString("  " + alertStyle.Render(m.phaseNotice) + "\n")
	}
	if m.lastEvent != "" {
		sb.WriteString(dimStyle.Render("  last event: "+m.lastEvent) + "\n")
	}
	if m.err != nil {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("  error: %v", m.err)) + "\n")
	}
	sb.WriteString(helpStyle.Render("  r refresh · q quit"))

	return sb.String()
}

func bar(percent float64, width int) string {
	filled := int(percent / 100 * float64(width))
	if filled > width {
		filled = width
	}
	return doneStyle.Render(strings.Repeat("█", filled)) +
		dimStyle.Render(strings.Repeat("░", width-filled))
}

func taskLine(t *plan.Task, p *plan.Plan) string {
	mark := "○"
	switch t.Status {
	case plan.StatusCompleted:
		mark = doneStyle.Render("✓")
	case plan.StatusInProgress:
		mark = alertStyle.Render("◐")
	case plan.StatusSkipped:
		mark = dimStyle.Render("⊘")
	}
	line := fmt.Sprintf("%s %s", mark, t.Title)
	if !p.IsUnblocked(t.ID) {
		line += dimStyle.Render("  blocked")
	}
	return line
}
