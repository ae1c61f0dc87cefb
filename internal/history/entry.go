// Package history provides the append-only mutation ledger: audit
// trail, undo inversion and state replay.
package history

import (
	"encoding/json"
	"time"

	"github.com/joss/actionplan/internal/plan"
)

// Entry is an immutable record of one accepted mutation. The sequence
// of entries for a plan, replayed in order, reconstructs the plan's
// state exactly. Mutation carries the fully resolved intent (IDs and
// timestamp assigned) so replay runs the same code path as the
// original application.
type Entry struct {
	ID        string          `json:"id"`
	PlanID    string          `json:"plan_id"`
	Version   int64           `json:"version"`
	ActorID   string          `json:"actor_id"`
	Op        plan.Op         `json:"op"`
	TargetID  string          `json:"target_id"`
	Mutation  plan.Mutation   `json:"mutation"`
	Before    json.RawMessage `json:"before,omitempty"`
	After     json.RawMessage `json:"after,omitempty"`
	Override  bool            `json:"override,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
