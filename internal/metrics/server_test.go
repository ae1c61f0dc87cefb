package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordMutation(t *testing.T) {
	m := &Metrics{}
	m.RecordMutation(true, 12)
	m.RecordMutation(true, 7)
	m.RecordMutation(false, 3)

	assert.Equal(t, int64(2), m.MutationsApplied.Load())
	assert.Equal(t, int64(1), m.MutationsRejected.Load())
	assert.Equal(t, int64(3), m.LastMutationDurationMs.Load())
}

func TestRecordBroadcast(t *testing.T) {
	m := &Metrics{}
	m.RecordBroadcast(4, 1)
	m.RecordBroadcast(2, 0)

	assert.Equal(t, int64(6), m.BroadcastEvents.Load())
	assert.Equal(t, int64(1), m.SubscriberLags.Load())
}

func TestRecordExport(t *testing.T) {
	m := &Metrics{}
	m.RecordExport(true)
	m.RecordExport(false)

	assert.Equal(t, int64(2), m.Exports.Load())
	assert.Equal(t, int64(1), m.ExportErrors.Load())
}

func TestHandlerOutput(t *testing.T) {
	m := &Metrics{}
	m.RecordMutation(true, 5)
	m.RecordConflict()
	m.RecordSnapshot()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler()(rec, req)

	res := rec.Result()
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, "actionplan_mutations_applied_total 1")
	assert.Contains(t, text, "actionplan_version_conflicts_total 1")
	assert.Contains(t, text, "actionplan_snapshots_written_total 1")
	assert.Contains(t, text, "actionplan_last_mutation_duration_ms 5")
	assert.True(t, strings.Contains(res.Header.Get("Content-Type"), "text/plain"))
}

func TestGlobalSingleton(t *testing.T) {
	a := Global()
	b := Global()
	assert.Same(t, a, b)
}
