package syncer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/actionplan/internal/plan"
)

func ev(planID string, version int64) Event {
	return Event{
		PlanID:    planID,
		Version:   version,
		Op:        plan.OpSetStatus,
		Timestamp: time.Now().UTC(),
	}
}

func TestPublishInOrder(t *testing.T) {
	b := NewBroker(8)
	defer b.Close()

	sub := b.Subscribe("p1")
	for v := int64(2); v <= 5; v++ {
		b.Publish(ev("p1", v))
	}

	for v := int64(2); v <= 5; v++ {
		got := <-sub.C
		assert.Equal(t, v, got.Version)
		assert.False(t, got.Gap)
	}
}

func TestPublishOnlyToMatchingPlan(t *testing.T) {
	b := NewBroker(8)
	defer b.Close()

	a := b.Subscribe("p1")
	other := b.Subscribe("p2")

	b.Publish(ev("p1", 2))

	got := <-a.C
	assert.Equal(t, "p1", got.PlanID)
	select {
	case <-other.C:
		t.Fatal("event leaked to wrong plan")
	default:
	}
}

func TestLaggedSubscriberGetsGapMarker(t *testing.T) {
	b := NewBroker(2)
	defer b.Close()

	sub := b.Subscribe("p1")

	// Fill the buffer, then overflow it twice.
	b.Publish(ev("p1", 2))
	b.Publish(ev("p1", 3))
	b.Publish(ev("p1", 4)) // dropped, sub marked lagged
	b.Publish(ev("p1", 5)) // dropped too: buffer still full

	got := <-sub.C
	require.Equal(t, int64(2), got.Version)
	got = <-sub.C
	require.Equal(t, int64(3), got.Version)

	// Room now exists; the next publish flushes a gap marker instead of
	// the event itself.
	b.Publish(ev("p1", 6))
	got = <-sub.C
	assert.True(t, got.Gap)
	assert.Equal(t, int64(3), got.FromVersion)
	assert.Equal(t, int64(6), got.Version)

	// After the gap the feed resumes with live events.
	b.Publish(ev("p1", 7))
	got = <-sub.C
	assert.False(t, got.Gap)
	assert.Equal(t, int64(7), got.Version)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker(4)
	defer b.Close()

	sub := b.Subscribe("p1")
	require.Equal(t, 1, b.SubscriberCount("p1"))

	b.Unsubscribe(sub)
	assert.Equal(t, 0, b.SubscriberCount("p1"))

	_, open := <-sub.C
	assert.False(t, open)

	// Publishing to a plan with no subscribers is a no-op.
	b.Publish(ev("p1", 2))
}

func TestCloseTerminatesAllFeeds(t *testing.T) {
	b := NewBroker(4)
	s1 := b.Subscribe("p1")
	s2 := b.Subscribe("p2")

	b.Close()

	_, open := <-s1.C
	assert.False(t, open)
	_, open = <-s2.C
	assert.False(t, open)

	// Subscribe after close yields an already-closed feed.
	s3 := b.Subscribe("p3")
	_, open = <-s3.C
	assert.False(t, open)
}
