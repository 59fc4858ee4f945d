package ir

import "time"

// Event is a discrete, typed mutation request.
//
// Type is the discriminant every reducer switches on. The Sequence* fields
// are optional metadata correlating the events of one multi-step user
// operation. Fields carries the domain-specific payload.
//
// Events are value objects: once decoded, neither the envelope nor Fields
// is mutated by the engine or reducers.
type Event struct {
	Type string

	// SequenceID is the opaque correlation key. Empty means unsequenced.
	SequenceID string
	// SequenceCounter is assigned by the sender, strictly increasing.
	SequenceCounter int64
	// SequenceRevertPoint marks the anchor that is always applied, even
	// when the sequence has failed.
	SequenceRevertPoint bool
	// SequenceEnd marks the last event of the sequence.
	SequenceEnd bool

	Fields IRObject
}

// Sequenced reports whether the event belongs to a sequence.
func (e Event) Sequenced() bool {
	return e.SequenceID != ""
}

// EventTypePeriodic is the synthetic heartbeat event type.
const EventTypePeriodic = "periodic"

// GatewayUserID is the user id carried by internally generated events.
const GatewayUserID = "gateway"

// RequestContext is the ambient per-invocation data threaded alongside an
// event. It is never written to shared state.
type RequestContext struct {
	UserID string
	IP     string
	Claims map[string]any
	// Time is the receive time of the event. Reducers that timestamp use it
	// instead of the wall clock so journal replay is deterministic.
	Time time.Time
}

// Outcome is the processing result recorded for an event.
type Outcome string

const (
	// OutcomeApplied means every matching reducer ran without error.
	OutcomeApplied Outcome = "applied"
	// OutcomeSkipped means the sequence guard dropped the event.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeFailed means a reducer returned an error or panicked.
	OutcomeFailed Outcome = "failed"
)

// JournalEntry is one processed event as recorded by the journal.
type JournalEntry struct {
	Seq        int64     `json:"seq"` // Logical clock, assigned by the engine
	EventID    string    `json:"event_id"`
	Event      Event     `json:"event"`
	UserID     string    `json:"user_id"`
	ReceivedAt time.Time `json:"received_at"`
	Outcome    Outcome   `json:"outcome"`
	Error      string    `json:"error,omitempty"`
}
