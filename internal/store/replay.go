package store

import (
	"context"
	"fmt"

	"github.com/roach88/cowork/internal/ir"
)

// SequenceState summarizes one sequence as recorded in the journal.
type SequenceState struct {
	SequenceID     string            `json:"sequence_id"`
	Entries        []ir.JournalEntry `json:"-"`
	LastSeq        int64             `json:"last_seq"`
	HighestCounter int64             `json:"highest_counter"`
	Applied        int               `json:"applied"`
	Skipped        int               `json:"skipped"`
	Failed         bool              `json:"failed"`
	Ended          bool              `json:"ended"`

	// Recovered is set when a revert point applied after the last failure.
	Recovered bool `json:"recovered"`
}

// GetSequenceState reads a sequence's entries and analyzes them.
// Returns a zero-entry state when the sequence is unknown.
func (s *Store) GetSequenceState(ctx context.Context, sequenceID string) (SequenceState, error) {
	entries, err := s.ReadSequence(ctx, sequenceID)
	if err != nil {
		return SequenceState{}, fmt.Errorf("get sequence state: %w", err)
	}
	return AnalyzeSequence(sequenceID, entries), nil
}

// AnalyzeSequence folds a sequence's entries, in seq order, into a
// SequenceState.
func AnalyzeSequence(sequenceID string, entries []ir.JournalEntry) SequenceState {
	st := SequenceState{SequenceID: sequenceID, Entries: entries}
	for _, e := range entries {
		st.LastSeq = max(st.LastSeq, e.Seq)
		st.HighestCounter = max(st.HighestCounter, e.Event.SequenceCounter)
		if e.Event.SequenceEnd {
			st.Ended = true
		}

		switch e.Outcome {
		case ir.OutcomeApplied:
			st.Applied++
			if st.Failed && e.Event.SequenceRevertPoint {
				st.Recovered = true
			}
		case ir.OutcomeSkipped:
			st.Skipped++
		case ir.OutcomeFailed:
			st.Failed = true
			st.Recovered = false
		}
	}
	return st
}

// FindOpenSequences returns ids of sequences that never delivered their
// end event, ordered by first appearance.
func (s *Store) FindOpenSequences(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sequence_id
		FROM events
		WHERE sequence_id IS NOT NULL
		GROUP BY sequence_id
		HAVING SUM(json_extract(envelope, '$.sequenceEnd') IS 1) = 0
		ORDER BY MIN(seq) ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("find open sequences: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan sequence id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sequences: %w", err)
	}
	return ids, nil
}
