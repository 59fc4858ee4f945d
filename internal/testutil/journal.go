package testutil

import (
	"context"
	"sync"

	"github.com/roach88/cowork/internal/ir"
)

// MemJournal records journal entries in memory.
//
// Implements engine.Journal. Set Err to make every Append fail.
type MemJournal struct {
	mu      sync.Mutex
	entries []ir.JournalEntry
	Err     error
}

// NewMemJournal creates an empty journal.
func NewMemJournal() *MemJournal {
	return &MemJournal{}
}

// Append records e, or returns Err when set.
func (j *MemJournal) Append(_ context.Context, e ir.JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.Err != nil {
		return j.Err
	}
	j.entries = append(j.entries, e)
	return nil
}

// Entries returns a copy of the recorded entries in append order.
func (j *MemJournal) Entries() []ir.JournalEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]ir.JournalEntry, len(j.entries))
	copy(out, j.entries)
	return out
}

// Outcomes returns the outcome of every entry in append order.
func (j *MemJournal) Outcomes() []ir.Outcome {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]ir.Outcome, len(j.entries))
	for i, e := range j.entries {
		out[i] = e.Outcome
	}
	return out
}
