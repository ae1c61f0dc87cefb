// Package logging provides structured JSON logging for engine components.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level represents log severity
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Event represents a structured log event
type Event struct {
	Timestamp string                 `json:"ts"`
	Level     Level                  `json:"level"`
	Component string                 `json:"component"`
	Event     string                 `json:"event"`
	Plan      string                 `json:"plan,omitempty"`
	Actor     string                 `json:"actor,omitempty"`
	Version   int64                  `json:"version,omitempty"`
	Duration  int64                  `json:"duration_ms,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Extra     map[string]interface{} `json:"extra,omitempty"`
}

var (
	outMu sync.Mutex
	out   io.Writer = os.Stderr
)

// SetOutput redirects log output (for testing).
func SetOutput(w io.Writer) {
	outMu.Lock()
	defer outMu.Unlock()
	out = w
}

// Logger provides structured logging
type Logger struct {
	component string
	plan      string
	actor     string
}

// New creates a new logger for a component
func New(component string) *Logger {
	return &Logger{component: component}
}

// WithPlan sets the plan context
func (l *Logger) WithPlan(planID string) *Logger {
	return &Logger{component: l.component, plan: planID, actor: l.actor}
}

// WithActor sets the actor context
func (l *Logger) WithActor(actor string) *Logger {
	return &Logger{component: l.component, plan: l.plan, actor: actor}
}

// log emits a structured log event
func (l *Logger) log(level Level, event string, extra map[string]interface{}, err error) {
	e := Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     level,
		Component: l.component,
		Event:     event,
		Plan:      l.plan,
		Actor:     l.actor,
		Extra:     extra,
	}

	if err != nil {
		e.Error = err.Error()
	}

	emit(e)
}

func emit(e Event) {
	data, _ := json.Marshal(e)
	outMu.Lock()
	defer outMu.Unlock()
	fmt.Fprintln(out, string(data))
}

// Debug logs a debug event
func (l *Logger) Debug(event string, extra map[string]interface{}) {
	l.log(LevelDebug, event, extra, nil)
}

// Info logs an info event
func (l *Logger) Info(event string, extra map[string]interface{}) {
	l.log(LevelInfo, event, extra, nil)
}

// Warn logs a warning event
func (l *Logger) Warn(event string, extra map[string]interface{}, err error) {
	l.log(LevelWarn, event, extra, err)
}

// Error logs an error event
func (l *Logger) Error(event string, extra map[string]interface{}, err error) {
	l.log(LevelError, event, extra, err)
}

// TimedEvent logs an event with duration
func (l *Logger) TimedEvent(event string, start time.Time, extra map[string]interface{}) {
	emit(Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     LevelInfo,
		Component: l.component,
		Event:     event,
		Plan:      l.plan,
		Actor:     l.actor,
		Duration:  time.Since(start).Milliseconds(),
		Extra:     extra,
	})
}

// MutationEvent logs an accepted mutation with its committed version.
func MutationEvent(planID, actor, op string, version int64, duration time.Duration) {
	emit(Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     LevelInfo,
		Component: "engine",
		Event:     "mutation_applied",
		Plan:      planID,
		Actor:     actor,
		Version:   version,
		Duration:  duration.Milliseconds(),
		Extra: map[string]interface{}{
			"op": op,
		},
	})
}

// ConflictEvent logs a rejected stale-version mutation.
func ConflictEvent(planID, actor, op string, expected, actual int64) {
	emit(Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     LevelWarn,
		Component: "engine",
		Event:     "version_conflict",
		Plan:      planID,
		Actor:     actor,
		Version:   actual,
		Extra: map[string]interface{}{
			"op":       op,
			"expected": expected,
		},
	})
}

// PhaseCompletedEvent logs the one-time phase completion crossing.
func PhaseCompletedEvent(planID, phaseID string, version int64) {
	emit(Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     LevelInfo,
		Component: "progress",
		Event:     "phase_completed",
		Plan:      planID,
		Version:   version,
		Extra: map[string]interface{}{
			"phase": phaseID,
		},
	})
}
