// Package selftest validates the engine's runtime environment: data
// directory, database, and the optional graph database.
package selftest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/term"

	"github.com/joss/actionplan/internal/config"
	"github.com/joss/actionplan/internal/graph"
	"github.com/joss/actionplan/internal/store"
)

// Environment describes the runtime environment.
type Environment struct {
	HasTTY       bool
	DataDir      string
	DataWritable bool
	DBPath       string
	DBOpens      bool
	PlanCount    int
	GraphURI     string
	GraphUp      bool
	Warnings     []string
	Errors       []string
}

// Check performs a complete environment validation.
func Check() *Environment {
	env := &Environment{
		HasTTY:   term.IsTerminal(int(os.Stdin.Fd())),
		DataDir:  config.GetPaths().Data,
		DBPath:   config.DBPath(),
		GraphURI: config.Env().Neo4jURI,
	}

	env.checkData()
	env.checkGraph()
	return env
}

func (e *Environment) checkData() {
	if err := config.EnsureDir(e.DataDir); err != nil {
		e.Errors = append(e.Errors, fmt.Sprintf("data directory not writable: %v", err))
		return
	}
	probe := filepath.Join(e.DataDir, ".selftest")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		e.Errors = append(e.Errors, fmt.Sprintf("data directory not writable: %v", err))
		return
	}
	os.Remove(probe)
	e.DataWritable = true

	s, err := store.Open(e.DBPath)
	if err != nil {
		e.Errors = append(e.Errors, fmt.Sprintf("database does not open: %v", err))
		return
	}
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Ping(ctx); err != nil {
		e.Errors = append(e.Errors, fmt.Sprintf("database does not respond: %v", err))
		return
	}
	e.DBOpens = true

	if plans, err := s.ListPlans(ctx, 0); err == nil {
		e.PlanCount = len(plans)
	}
}

func (e *Environment) checkGraph() {
	b, err := graph.Connect()
	if err != nil {
		e.Warnings = append(e.Warnings, fmt.Sprintf("graph database unavailable: %v (projection disabled)", err))
		return
	}
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := b.Ping(ctx); err != nil {
		e.Warnings = append(e.Warnings, fmt.Sprintf("graph database unreachable at %s (projection disabled)", e.GraphURI))
		return
	}
	e.GraphUp = true
}

// Healthy reports whether the engine can run. Warnings do not count:
// the graph projection is optional.
func (e *Environment) Healthy() bool {
	return len(e.Errors) == 0
}

// Report formats the check results for the terminal.
func (e *Environment) Report() string {
	mark := func(ok bool) string {
		if ok {
			return "ok"
		}
		return "FAIL"
	}

	out := fmt.Sprintf("data dir   %-6s %s\n", mark(e.DataWritable), e.DataDir)
	out += fmt.Sprintf("database   %-6s %s (%d plans)\n", mark(e.DBOpens), e.DBPath, e.PlanCount)
	graphMark := "off"
	if e.GraphUp {
		graphMark = "ok"
	}
	out += fmt.Sprintf("graph      %-6s %s\n", graphMark, e.GraphURI)
	out += fmt.Sprintf("tty        %v\n", e.HasTTY)

	for _, w := range e.Warnings {
		out += "warning: " + w + "\n"
	}
	for _, err := range e.Errors {
		out += "error: " + err + "\n"
	}
	return out
}
