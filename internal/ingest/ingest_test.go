package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/actionplan/internal/plan"
)

const validPayload = `{
  "phases": [
    {"label": "Validation", "tasks": [
      {"title": "Interview customers", "estimated_time": "3d"},
      {"title": "Write summary", "resources": ["https://example.com/guide"]}
    ]},
    {"label": "Launch", "tasks": [{"title": "Ship landing page"}]}
  ]
}`

func TestParseValidPayload(t *testing.T) {
	g, err := Parse(strings.NewReader(validPayload))
	require.NoError(t, err)
	require.Len(t, g.Phases, 2)
	assert.Equal(t, "Validation", g.Phases[0].Label)
	assert.Len(t, g.Phases[0].Tasks, 2)
	assert.Equal(t, "3d", g.Phases[0].Tasks[0].EstimatedTime)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse(strings.NewReader(`{"phases": [], "surprise": true}`))
	assert.ErrorIs(t, err, plan.ErrValidation)
}

func TestParseRejectsEmptyPhases(t *testing.T) {
	_, err := Parse(strings.NewReader(`{"phases": []}`))
	assert.ErrorIs(t, err, plan.ErrValidation)
}

func TestParseRejectsUntitledTask(t *testing.T) {
	_, err := Parse(strings.NewReader(`{"phases": [{"label": "X", "tasks": [{"title": ""}]}]}`))
	assert.ErrorIs(t, err, plan.ErrValidation)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.json")
	require.NoError(t, os.WriteFile(path, []byte(validPayload), 0o644))

	g, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, g.Phases, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
