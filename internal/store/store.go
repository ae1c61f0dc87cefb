// Package store provides durable persistence for plans, their history
// and their progress snapshots.
package store

import (
	"context"

	"github.com/joss/actionplan/internal/history"
	"github.com/joss/actionplan/internal/plan"
)

// Store is the minimal interface all stores must implement.
type Store interface {
	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error
	// Close releases any resources held by the store.
	Close() error
}

// PlanReader provides read access to persisted plan state.
type PlanReader interface {
	// GetPlan loads the full plan (phases, tasks, edges) by ID.
	GetPlan(ctx context.Context, id string) (*plan.Plan, error)
	// ListPlans returns plan headers (no phases) ordered by update time.
	ListPlans(ctx context.Context, limit int) ([]*plan.Plan, error)
}

// Committer persists the result of one accepted mutation. The plan
// state, the history entry and the optional progress snapshot land in
// a single transaction: a mutation is all-or-nothing.
type Committer interface {
	Commit(ctx context.Context, p *plan.Plan, entry *history.Entry, snap *plan.ProgressSnapshot) error
}

// SnapshotReader provides the progress trend line.
type SnapshotReader interface {
	// ListSnapshots returns snapshots in ascending version order.
	// limit <= 0 means no limit.
	ListSnapshots(ctx context.Context, planID string, limit int) ([]plan.ProgressSnapshot, error)
}

// PlanStore combines everything the engine needs from persistence.
type PlanStore interface {
	Store
	PlanReader
	Committer
	SnapshotReader
	history.Reader
}
