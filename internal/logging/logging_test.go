package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T, fn func()) []Event {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	fn()

	var events []Event
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e Event
		require.NoError(t, json.Unmarshal([]byte(line), &e))
		events = append(events, e)
	}
	return events
}

func TestLoggerFields(t *testing.T) {
	events := capture(t, func() {
		New("engine").WithPlan("p1").WithActor("alice").Info("mutation_queued", map[string]interface{}{"op": "set_status"})
	})

	require.Len(t, events, 1)
	e := events[0]
	assert.Equal(t, LevelInfo, e.Level)
	assert.Equal(t, "engine", e.Component)
	assert.Equal(t, "p1", e.Plan)
	assert.Equal(t, "alice", e.Actor)
	assert.Equal(t, "set_status", e.Extra["op"])
}

func TestLoggerError(t *testing.T) {
	events := capture(t, func() {
		New("store").Error("save_failed", nil, assert.AnError)
	})

	require.Len(t, events, 1)
	assert.Equal(t, LevelError, events[0].Level)
	assert.Contains(t, events[0].Error, "assert.AnError")
}

func TestMutationEvent(t *testing.T) {
	events := capture(t, func() {
		MutationEvent("p1", "alice", "reorder_task", 7, 3*time.Millisecond)
	})

	require.Len(t, events, 1)
	assert.Equal(t, "mutation_applied", events[0].Event)
	assert.Equal(t, int64(7), events[0].Version)
}

func TestRecoveryHandler_WrapError(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	h := NewRecoveryHandler("engine")
	err := h.WrapError(func() error { panic("boom") })

	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Contains(t, buf.String(), "panic_recovered")
}

func TestRequestID(t *testing.T) {
	id := NewRequestID()
	assert.Len(t, id, 16)
	assert.NotEqual(t, id, NewRequestID())

	ctx := WithRequestID(context.Background(), "abc")
	assert.Equal(t, "abc", GetRequestID(ctx))
	assert.Empty(t, GetRequestID(context.Background()))
}
