package sequence

import (
	"sync"

	"github.com/roach88/cowork/internal/ir"
)

// Tracker is the per-sequence bookkeeping: highest counter seen and the
// failed flag.
//
// The exported Lock/Unlock pair is the single-writer guard for a sequence:
// the processor holds it from AddEvent until the last reducer returns, so
// two events of the same sequence never interleave. Bookkeeping methods
// take their own internal lock and are safe to call with or without it.
type Tracker struct {
	id string

	sync.Mutex // held across one event's processing

	mu      sync.Mutex
	seen    bool
	highest int64
	failed  bool
	ended   bool
}

// NewTracker creates an empty tracker for a sequence id.
func NewTracker(id string) *Tracker {
	return &Tracker{id: id}
}

// ID returns the sequence id.
func (t *Tracker) ID() string {
	return t.id
}

// AddEvent records an event and reports whether it may be applied.
//
// The event is accepted when the sequence has no prior events or its
// counter is strictly greater than the highest counter seen. Equal counters
// are duplicates and are rejected. A failed tracker rejects everything;
// the caller decides whether a revert point overrides the rejection.
//
// The highest counter advances even when the tracker is failed, so a
// revert point re-anchors the sequence at its own counter.
func (t *Tracker) AddEvent(ev ir.Event) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	fresh := !t.seen || ev.SequenceCounter > t.highest
	if fresh {
		t.seen = true
		t.highest = ev.SequenceCounter
	}
	return fresh && !t.failed
}

// IsFailed reports whether a reducer failed for this sequence.
func (t *Tracker) IsFailed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failed
}

// SetFailed marks the sequence failed. Idempotent.
func (t *Tracker) SetFailed() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failed = true
}

// End marks that the sequence delivered its last event.
func (t *Tracker) End() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ended = true
}

// Ended reports whether the sequence delivered its last event.
func (t *Tracker) Ended() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ended
}

// Highest returns the highest counter seen and whether any event was seen.
func (t *Tracker) Highest() (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.highest, t.seen
}
