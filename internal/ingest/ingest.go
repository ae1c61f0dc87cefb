// Package ingest loads generated plan payloads from files or streams
// and prepares them for seeding.
package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/joss/actionplan/internal/plan"
)

// maxPayloadBytes bounds a single generated payload. Payloads are
// produced for humans; anything bigger is a malformed input.
const maxPayloadBytes = 4 << 20

// Load reads a generated plan payload from a JSON file. A path of "-"
// reads stdin.
func Load(path string) (*plan.GeneratedPlan, error) {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open payload: %w", err)
		}
		defer f.Close()
		r = f
	}
	return Parse(r)
}

// Parse decodes and validates a generated plan payload.
func Parse(r io.Reader) (*plan.GeneratedPlan, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxPayloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	if len(data) > maxPayloadBytes {
		return nil, fmt.Errorf("%w: payload exceeds %d bytes", plan.ErrValidation, maxPayloadBytes)
	}

	var g plan.GeneratedPlan
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&g); err != nil {
		return nil, fmt.Errorf("%w: %v", plan.ErrValidation, err)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}
