// Package syncer fans plan change events out to live subscribers.
// Events for a plan are published in version order and delivered to each
// subscriber in that same order. Delivery is at-least-once: a subscriber
// that falls behind is handed a gap marker and is expected to refetch the
// plan before consuming further events.
package syncer

import (
	"strconv"
	"sync"
	"time"

	"github.com/joss/actionplan/internal/logging"
	"github.com/joss/actionplan/internal/metrics"
	"github.com/joss/actionplan/internal/plan"
)

// Event describes one committed mutation, ready for fan-out.
type Event struct {
	PlanID    string          `json:"plan_id"`
	Version   int64           `json:"version"`
	Op        plan.Op         `json:"op"`
	TargetID  string          `json:"target_id,omitempty"`
	ActorID   string          `json:"actor_id,omitempty"`
	Timestamp time.Time       `json:"ts"`

	// Snapshot carries recomputed progress when the mutation affected it.
	Snapshot *plan.ProgressSnapshot `json:"snapshot,omitempty"`

	// PhaseCompleted lists phases that crossed the completion threshold
	// with this event. Emitted at most once per phase crossing.
	PhaseCompleted []string `json:"phase_completed,omitempty"`

	// Gap is set on a synthetic marker delivered after a subscriber missed
	// events. On receipt the subscriber must refetch the plan; FromVersion
	// is the last version it saw before the gap.
	Gap         bool  `json:"gap,omitempty"`
	FromVersion int64 `json:"from_version,omitempty"`
}

// Subscription is one subscriber's ordered event feed.
type Subscription struct {
	ID     string
	PlanID string
	C      <-chan Event

	ch     chan Event
	gapped bool
	last   int64
}

// Broker multiplexes plan events to any number of subscribers.
type Broker struct {
	mu     sync.Mutex
	subs   map[string][]*Subscription // plan ID -> subscribers
	nextID int
	buffer int
	closed bool

	log *logging.Logger
	met *metrics.Metrics
}

const defaultBuffer = 64

// NewBroker creates a broker with the given per-subscriber buffer size.
// A size of 0 uses the default.
func NewBroker(buffer int) *Broker {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Broker{
		subs:   make(map[string][]*Subscription),
		buffer: buffer,
		log:    logging.New("syncer"),
		met:    metrics.Global(),
	}
}

// Subscribe registers a new subscriber for a plan's events. The returned
// subscription's channel is closed on Unsubscribe or broker Close.
func (b *Broker) Subscribe(planID string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	ch := make(chan Event, b.buffer)
	sub := &Subscription{
		ID:     subID(b.nextID),
		PlanID: planID,
		C:      ch,
		ch:     ch,
	}
	if b.closed {
		close(ch)
		return sub
	}
	b.subs[planID] = append(b.subs[planID], sub)
	b.log.Debug("subscribed", map[string]any{"plan": planID, "sub": sub.ID})
	return sub
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broker) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[sub.PlanID]
	for i, s := range subs {
		if s == sub {
			b.subs[sub.PlanID] = append(subs[:i], subs[i+1:]...)
			close(s.ch)
			break
		}
	}
	if len(b.subs[sub.PlanID]) == 0 {
		delete(b.subs, sub.PlanID)
	}
}

// Publish delivers an event to every subscriber of its plan. The caller
// serializes calls per plan, so arrival order here is version order.
// A subscriber whose buffer is full misses the event; the next time its
// buffer has room it receives a gap marker instead of the missed events.
func (b *Broker) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	delivered, lagged := 0, 0
	for _, sub := range b.subs[ev.PlanID] {
		if sub.gapped {
			// Try to flush the pending gap marker before anything else.
			marker := Event{
				PlanID:      ev.PlanID,
				Version:     ev.Version,
				Gap:         true,
				FromVersion: sub.last,
				Timestamp:   ev.Timestamp,
			}
			select {
			case sub.ch <- marker:
				sub.gapped = false
				sub.last = ev.Version
			default:
			}
			continue
		}
		select {
		case sub.ch <- ev:
			sub.last = ev.Version
			delivered++
		default:
			sub.gapped = true
			lagged++
			b.log.Warn("subscriber lagged, gap pending", map[string]any{
				"plan": ev.PlanID, "sub": sub.ID, "version": ev.Version,
			}, nil)
		}
	}
	b.met.RecordBroadcast(delivered, lagged)
}

// SubscriberCount reports how many subscribers a plan currently has.
func (b *Broker) SubscriberCount(planID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[planID])
}

// Close shuts the broker down and closes every subscriber channel.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for planID, subs := range b.subs {
		for _, s := range subs {
			close(s.ch)
		}
		delete(b.subs, planID)
	}
}

func subID(n int) string {
	return "sub-" + strconv.Itoa(n)
}
