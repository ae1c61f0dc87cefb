// Package engine is the mutation sequencer. It serializes mutations
// per plan, resolves identifiers and timestamps, enforces optimistic
// versioning, commits through the store and fans accepted changes out
// to subscribers.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/joss/actionplan/internal/history"
	"github.com/joss/actionplan/internal/logging"
	"github.com/joss/actionplan/internal/metrics"
	"github.com/joss/actionplan/internal/plan"
	"github.com/joss/actionplan/internal/store"
	"github.com/joss/actionplan/internal/syncer"
)

// Engine coordinates the full mutation pipeline for all plans.
type Engine struct {
	store  store.PlanStore
	ledger *history.Ledger
	broker *syncer.Broker

	// validationTimeout bounds the structural validation of a single
	// mutation. Overruns reject the mutation with ErrValidationTimeout
	// and leave state untouched.
	validationTimeout time.Duration

	locks sync.Map // plan ID -> *sync.Mutex

	log *logging.Logger
	met *metrics.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithValidationTimeout overrides the default validation deadline.
func WithValidationTimeout(d time.Duration) Option {
	return func(e *Engine) { e.validationTimeout = d }
}

// WithBroker attaches a shared event broker.
func WithBroker(b *syncer.Broker) Option {
	return func(e *Engine) { e.broker = b }
}

// New creates an engine on top of a plan store.
func New(st store.PlanStore, opts ...Option) *Engine {
	e := &Engine{
		store:             st,
		ledger:            history.NewLedger(st),
		broker:            syncer.NewBroker(0),
		validationTimeout: 2 * time.Second,
		log:               logging.New("engine"),
		met:               metrics.Global(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Broker exposes the event broker for subscribers.
func (e *Engine) Broker() *syncer.Broker { return e.broker }

// Ledger exposes the history ledger.
func (e *Engine) Ledger() *history.Ledger { return e.ledger }

// Close releases the engine's resources. The store is owned by the
// caller and stays open.
func (e *Engine) Close() {
	e.broker.Close()
}

func (e *Engine) lock(planID string) *sync.Mutex {
	mu, _ := e.locks.LoadOrStore(planID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// GetPlan loads the current state of a plan.
func (e *Engine) GetPlan(ctx context.Context, planID string) (*plan.Plan, error) {
	return e.store.GetPlan(ctx, planID)
}

// ListPlans returns plan headers ordered by update time.
func (e *Engine) ListPlans(ctx context.Context, limit int) ([]*plan.Plan, error) {
	return e.store.ListPlans(ctx, limit)
}

// ProgressHistory returns the persisted progress trend in ascending
// version order.
func (e *Engine) ProgressHistory(ctx context.Context, planID string, limit int) ([]plan.ProgressSnapshot, error) {
	return e.store.ListSnapshots(ctx, planID, limit)
}

// History returns ledger entries for a plan from the given version.
func (e *Engine) History(ctx context.Context, planID string, fromVersion int64) ([]history.Entry, error) {
	return e.ledger.ListSince(ctx, planID, fromVersion)
}

// CreatePlan seeds a new plan from a generated payload. The plan and
// every seeded phase and task get identifiers assigned here, so the
// recorded creation mutation replays to identical state.
func (e *Engine) CreatePlan(ctx context.Context, title, analysisID, actorID string, seed *plan.GeneratedPlan) (*plan.Plan, error) {
	m := plan.Mutation{
		Op:         plan.OpCreatePlan,
		ActorID:    actorID,
		PlanID:     ulid.Make().String(),
		PlanTitle:  title,
		AnalysisID: analysisID,
		Seed:       seed,
	}
	if seed != nil {
		if err := seed.Validate(); err != nil {
			return nil, err
		}
		ids := &plan.SeedIDs{
			PhaseIDs: make([]string, len(seed.Phases)),
			TaskIDs:  make([][]string, len(seed.Phases)),
		}
		for i, ph := range seed.Phases {
			ids.PhaseIDs[i] = ulid.Make().String()
			ids.TaskIDs[i] = make([]string, len(ph.Tasks))
			for j := range ph.Tasks {
				ids.TaskIDs[i][j] = ulid.Make().String()
			}
		}
		m.SeedIDs = ids
	}

	p, _, err := e.apply(ctx, m.PlanID, m, 0)
	return p, err
}

// Apply runs one mutation against a plan under optimistic versioning.
// expectedVersion must match the plan's current version; on mismatch
// the returned error is a VersionConflictError carrying the current
// state so the caller can rebase without a second read.
func (e *Engine) Apply(ctx context.Context, planID string, m plan.Mutation, expectedVersion int64) (*plan.Plan, *history.Entry, error) {
	if m.Op == plan.OpCreatePlan {
		return nil, nil, fmt.Errorf("%w: create_plan goes through CreatePlan", plan.ErrValidation)
	}
	return e.apply(ctx, planID, m, expectedVersion)
}

// Undo reverts the actor's most recent mutation on a plan by applying
// its inverse as a new mutation at the head of history.
func (e *Engine) Undo(ctx context.Context, planID, actorID string) (*plan.Plan, *history.Entry, error) {
	entry, err := e.ledger.LastByActor(ctx, planID, actorID)
	if err != nil {
		return nil, nil, err
	}
	if entry == nil {
		return nil, nil, plan.NewNotFoundError("mutation by "+actorID, planID)
	}
	inv, err := history.Invert(entry, actorID)
	if err != nil {
		return nil, nil, err
	}
	cur, err := e.store.GetPlan(ctx, planID)
	if err != nil {
		return nil, nil, err
	}
	return e.apply(ctx, planID, inv, cur.Version)
}

func (e *Engine) apply(ctx context.Context, planID string, m plan.Mutation, expectedVersion int64) (*plan.Plan, *history.Entry, error) {
	mu := e.lock(planID)
	mu.Lock()
	defer mu.Unlock()

	start := time.Now()

	var cur *plan.Plan
	if m.Op == plan.OpCreatePlan {
		if _, err := e.store.GetPlan(ctx, planID); err == nil {
			return nil, nil, fmt.Errorf("%w: plan %s already exists", plan.ErrValidation, planID)
		} else if !plan.IsNotFound(err) {
			return nil, nil, err
		}
	} else {
		var err error
		cur, err = e.store.GetPlan(ctx, planID)
		if err != nil {
			return nil, nil, err
		}
		if cur.Version != expectedVersion {
			e.met.RecordConflict()
			logging.ConflictEvent(planID, m.ActorID, string(m.Op), expectedVersion, cur.Version)
			return nil, nil, &plan.VersionConflictError{
				PlanID:   planID,
				Expected: expectedVersion,
				Actual:   cur.Version,
				Current:  cur,
			}
		}
	}

	m = e.resolve(m)

	next, change, err := e.validate(ctx, cur, m)
	if err != nil {
		e.met.RecordMutation(false, time.Since(start).Milliseconds())
		return nil, nil, err
	}

	entry := &history.Entry{
		ID:        uuid.NewString(),
		PlanID:    next.ID,
		Version:   next.Version,
		ActorID:   m.ActorID,
		Op:        m.Op,
		TargetID:  change.TargetID,
		Mutation:  m,
		Before:    change.Before,
		After:     change.After,
		Override:  m.Override,
		CreatedAt: m.Timestamp,
	}

	var snap *plan.ProgressSnapshot
	var completed []string
	if m.AffectsProgress() {
		after := plan.Recompute(next)
		if cur != nil {
			before := plan.Recompute(cur)
			completed = plan.CompletedPhases(before, after)
		}
		snap = &after
	}

	if err := e.store.Commit(ctx, next, entry, snap); err != nil {
		e.met.RecordMutation(false, time.Since(start).Milliseconds())
		var conflict *plan.VersionConflictError
		if errors.As(err, &conflict) {
			e.met.RecordConflict()
			logging.ConflictEvent(planID, m.ActorID, string(m.Op), expectedVersion, conflict.Actual)
		}
		return nil, nil, err
	}
	if snap != nil {
		e.met.RecordSnapshot()
	}

	dur := time.Since(start)
	e.met.RecordMutation(true, dur.Milliseconds())
	logging.MutationEvent(next.ID, m.ActorID, string(m.Op), next.Version, dur)
	for _, phaseID := range completed {
		logging.PhaseCompletedEvent(next.ID, phaseID, next.Version)
	}

	e.broker.Publish(syncer.Event{
		PlanID:         next.ID,
		Version:        next.Version,
		Op:             m.Op,
		TargetID:       change.TargetID,
		ActorID:        m.ActorID,
		Timestamp:      m.Timestamp,
		Snapshot:       snap,
		PhaseCompleted: completed,
	})

	return next, entry, nil
}

// resolve assigns the identifiers and timestamp a mutation needs
// before application. A resolved mutation is fully deterministic.
func (e *Engine) resolve(m plan.Mutation) plan.Mutation {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	switch m.Op {
	case plan.OpAddTask:
		if m.TaskID == "" {
			m.TaskID = ulid.Make().String()
		}
	case plan.OpAddDependency:
		if m.EdgeID == "" {
			m.EdgeID = uuid.NewString()
		}
	}
	return m
}

type applyResult struct {
	next   *plan.Plan
	change plan.Change
	err    error
}

// validate runs the structural check and application under a deadline.
// The work itself is pure and in-memory; the deadline guards against
// pathological graphs.
func (e *Engine) validate(ctx context.Context, cur *plan.Plan, m plan.Mutation) (*plan.Plan, plan.Change, error) {
	ctx, cancel := context.WithTimeout(ctx, e.validationTimeout)
	defer cancel()
	if ctx.Err() != nil {
		e.met.RecordValidationTimeout()
		return nil, plan.Change{}, fmt.Errorf("%w: %s", plan.ErrValidationTimeout, m.Op)
	}

	ch := make(chan applyResult, 1)
	logging.SafeGo("engine", func() {
		next, change, err := plan.Apply(cur, m)
		ch <- applyResult{next, change, err}
	})

	select {
	case res := <-ch:
		return res.next, res.change, res.err
	case <-ctx.Done():
		e.met.RecordValidationTimeout()
		e.log.Warn("validation deadline exceeded", map[string]any{
			"op": string(m.Op), "actor": m.ActorID,
		}, ctx.Err())
		return nil, plan.Change{}, fmt.Errorf("%w: %s", plan.ErrValidationTimeout, m.Op)
	}
}
