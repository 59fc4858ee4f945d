package dispatch

import (
	"sync"

	"github.com/roach88/cowork/internal/ids"
	"github.com/roach88/cowork/internal/ir"
)

// Sequence stamps the events of one multi-step user operation (a drag, a
// resize) with a shared id and strictly increasing counters.
//
//	seq := dispatch.NewSequence(ids.UUIDv7{})
//	d.Dispatch(ctx, seq.Revert(start))
//	d.Debounce(seq.ID(), seq.Next(move))
//	d.Dispatch(ctx, seq.End(drop))
//
// Thread-safety: Sequence is safe for concurrent use.
type Sequence struct {
	id string

	mu      sync.Mutex
	counter int64
	ended   bool
}

// NewSequence creates a sequence with a generated id. Counters start at 1.
func NewSequence(gen ids.Generator) *Sequence {
	return &Sequence{id: gen.Generate()}
}

// ID returns the sequence id.
func (s *Sequence) ID() string {
	return s.id
}

// Next stamps ev as the next step.
func (s *Sequence) Next(ev ir.Event) ir.Event {
	return s.stamp(ev, false, false)
}

// Revert stamps ev as the next step and marks it a revert point: the
// backend applies it even after an earlier step failed.
func (s *Sequence) Revert(ev ir.Event) ir.Event {
	return s.stamp(ev, true, false)
}

// End stamps ev as the final step.
func (s *Sequence) End(ev ir.Event) ir.Event {
	return s.stamp(ev, false, true)
}

// Ended reports whether End has been called.
func (s *Sequence) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

func (s *Sequence) stamp(ev ir.Event, revert, end bool) ir.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counter++
	if end {
		s.ended = true
	}
	ev.SequenceID = s.id
	ev.SequenceCounter = s.counter
	ev.SequenceRevertPoint = revert
	ev.SequenceEnd = end
	return ev
}
