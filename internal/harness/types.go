package harness

import (
	"fmt"

	"github.com/roach88/cowork/internal/ir"
)

// TraceEntry is one journaled event of a scenario run.
type TraceEntry struct {
	Seq             int64      `json:"seq"`
	Type            string     `json:"type"`
	User            string     `json:"user"`
	SequenceID      string     `json:"sequence_id,omitempty"`
	SequenceCounter int64      `json:"sequence_counter,omitempty"`
	Outcome         ir.Outcome `json:"outcome"`
}

// Result is the outcome of executing a scenario.
type Result struct {
	// Pass is true when every step matched its error expectation and every
	// assertion held.
	Pass bool

	// Trace is the journal in commit order.
	Trace []TraceEntry

	// Errors holds step and assertion failures.
	Errors []string

	// State is the final snapshot of every container.
	State ir.IRObject

	// Digest is the final state digest.
	Digest string
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// Outcomes returns the trace outcomes in order.
func (r *Result) Outcomes() []string {
	out := make([]string, len(r.Trace))
	for i, e := range r.Trace {
		out[i] = string(e.Outcome)
	}
	return out
}

func traceFrom(entries []ir.JournalEntry) []TraceEntry {
	trace := make([]TraceEntry, len(entries))
	for i, e := range entries {
		trace[i] = TraceEntry{
			Seq:             e.Seq,
			Type:            e.Event.Type,
			User:            e.UserID,
			SequenceID:      e.Event.SequenceID,
			SequenceCounter: e.Event.SequenceCounter,
			Outcome:         e.Outcome,
		}
	}
	return trace
}
