package sequence

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/cowork/internal/ir"
)

func counter(n int64) ir.Event {
	return ir.Event{Type: "graph:move-node", SequenceID: "s1", SequenceCounter: n}
}

func TestTracker_FirstEventAccepted(t *testing.T) {
	tr := NewTracker("s1")
	assert.True(t, tr.AddEvent(counter(5)), "first event of a sequence is always accepted")

	h, seen := tr.Highest()
	assert.True(t, seen)
	assert.Equal(t, int64(5), h)
}

func TestTracker_StrictlyIncreasing(t *testing.T) {
	// Delivered as 2, 1, 3: only 2 and 3 apply.
	tr := NewTracker("s1")

	assert.True(t, tr.AddEvent(counter(2)))
	assert.False(t, tr.AddEvent(counter(1)), "stale counter rejected")
	assert.True(t, tr.AddEvent(counter(3)))
}

func TestTracker_EqualCounterRejected(t *testing.T) {
	tr := NewTracker("s1")
	assert.True(t, tr.AddEvent(counter(1)))
	assert.False(t, tr.AddEvent(counter(1)), "duplicate delivery rejected")
}

func TestTracker_FailedRejectsButAdvances(t *testing.T) {
	tr := NewTracker("s1")
	assert.True(t, tr.AddEvent(counter(1)))

	tr.SetFailed()
	tr.SetFailed() // idempotent
	assert.True(t, tr.IsFailed())

	assert.False(t, tr.AddEvent(counter(2)))
	h, _ := tr.Highest()
	assert.Equal(t, int64(2), h, "counter advances so a later revert point re-anchors")

	assert.False(t, tr.AddEvent(counter(5)))
	assert.True(t, tr.IsFailed(), "failure is permanent for the sequence")
}

func TestTracker_End(t *testing.T) {
	tr := NewTracker("s1")
	assert.False(t, tr.Ended())
	tr.End()
	assert.True(t, tr.Ended())
	assert.Equal(t, "s1", tr.ID())
}
