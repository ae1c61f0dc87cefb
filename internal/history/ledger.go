package history

import (
	"context"
	"fmt"

	"github.com/joss/actionplan/internal/plan"
)

// Reader is the storage surface the ledger needs. Implemented by the
// sqlite store; the ledger itself never writes. Entries are appended
// by the engine in the same transaction as the state they describe.
type Reader interface {
	// ListHistory returns entries for a plan with version > fromVersion,
	// in ascending version order. limit <= 0 means no limit.
	ListHistory(ctx context.Context, planID string, fromVersion int64, limit int) ([]Entry, error)
}

// Ledger reads and interprets the mutation history of plans.
type Ledger struct {
	r Reader
}

// NewLedger creates a ledger over the given storage.
func NewLedger(r Reader) *Ledger {
	return &Ledger{r: r}
}

// ListSince returns the entries for a plan after the given version.
func (l *Ledger) ListSince(ctx context.Context, planID string, version int64) ([]Entry, error) {
	return l.r.ListHistory(ctx, planID, version, 0)
}

// Replay reconstructs the plan state at toVersion (0 = latest) by
// re-applying every recorded mutation from creation. It runs the same
// Apply function as live mutations, so the result is identical to the
// state the store held at that version.
func (l *Ledger) Replay(ctx context.Context, planID string, toVersion int64) (*plan.Plan, error) {
	entries, err := l.r.ListHistory(ctx, planID, 0, 0)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, plan.NewNotFoundError("plan", planID)
	}

	var state *plan.Plan
	for _, e := range entries {
		if toVersion > 0 && e.Version > toVersion {
			break
		}
		next, _, err := plan.Apply(state, e.Mutation)
		if err != nil {
			return nil, fmt.Errorf("replay %s at version %d: %w", planID, e.Version, err)
		}
		if next.Version != e.Version {
			return nil, fmt.Errorf("replay %s: applied version %d, ledger says %d", planID, next.Version, e.Version)
		}
		state = next
	}
	return state, nil
}

// LastByActor returns the most recent entry appended by the actor, or
// nil when the actor has no mutations on the plan.
func (l *Ledger) LastByActor(ctx context.Context, planID, actorID string) (*Entry, error) {
	entries, err := l.r.ListHistory(ctx, planID, 0, 0)
	if err != nil {
		return nil, err
	}
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].ActorID == actorID {
			return &entries[i], nil
		}
	}
	return nil, nil
}
