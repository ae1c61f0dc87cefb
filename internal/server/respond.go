package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/joss/actionplan/internal/plan"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writePlan sends the plan with its version as a strong ETag.
func writePlan(w http.ResponseWriter, status int, p *plan.Plan) {
	w.Header().Set("ETag", strconv.FormatInt(p.Version, 10))
	writeJSON(w, status, p)
}

type errorBody struct {
	Error   string     `json:"error"`
	Kind    string     `json:"kind"`
	Current *plan.Plan `json:"current,omitempty"`
	Blocked []string   `json:"blocked_by,omitempty"`
	Path    []string   `json:"cycle_path,omitempty"`
}

// writeError maps domain errors to status codes. Version conflicts
// carry the current plan so clients can rebase; dependency failures
// carry the offending IDs.
func writeError(w http.ResponseWriter, err error) {
	var conflict *plan.VersionConflictError
	if errors.As(err, &conflict) {
		if conflict.Current != nil {
			w.Header().Set("ETag", strconv.FormatInt(conflict.Current.Version, 10))
		}
		writeJSON(w, http.StatusConflict, errorBody{
			Error: err.Error(), Kind: "version_conflict", Current: conflict.Current,
		})
		return
	}

	var cycle *plan.CycleError
	if errors.As(err, &cycle) {
		writeJSON(w, http.StatusConflict, errorBody{
			Error: err.Error(), Kind: "would_cycle", Path: cycle.Path,
		})
		return
	}

	var blocked *plan.BlockedError
	if errors.As(err, &blocked) {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{
			Error: err.Error(), Kind: "blocked", Blocked: blocked.Unsatisfied,
		})
		return
	}

	switch {
	case plan.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error(), Kind: "not_found"})
	case errors.Is(err, plan.ErrSelfReference), errors.Is(err, plan.ErrCrossPlan):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error(), Kind: "invalid_edge"})
	case errors.Is(err, plan.ErrPlanArchived):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error(), Kind: "archived"})
	case errors.Is(err, plan.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error(), Kind: "validation"})
	case errors.Is(err, plan.ErrValidationTimeout):
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: err.Error(), Kind: "timeout"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error(), Kind: "internal"})
	}
}

// expectedVersion reads the If-Match header. Mutating routes require
// it so every write is explicitly anchored to a version.
func expectedVersion(r *http.Request) (int64, error) {
	raw := r.Header.Get("If-Match")
	if raw == "" {
		return 0, fmt.Errorf("%w: missing If-Match version header", plan.ErrValidation)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%w: bad If-Match version %q", plan.ErrValidation, raw)
	}
	return v, nil
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body", plan.ErrValidation)
	}
	return nil
}
