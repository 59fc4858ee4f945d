package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cowork/internal/ir"
)

func TestAnalyzeSequence(t *testing.T) {
	revert := createSequencedEntry(4, "drag-1", 4, ir.OutcomeApplied)
	revert.Event.SequenceRevertPoint = true
	end := createSequencedEntry(5, "drag-1", 5, ir.OutcomeSkipped)
	end.Event.SequenceEnd = true

	tests := []struct {
		name    string
		entries []ir.JournalEntry
		want    SequenceState
	}{
		{
			name: "empty",
			want: SequenceState{SequenceID: "drag-1"},
		},
		{
			name: "clean run",
			entries: []ir.JournalEntry{
				createSequencedEntry(1, "drag-1", 1, ir.OutcomeApplied),
				createSequencedEntry(2, "drag-1", 2, ir.OutcomeApplied),
			},
			want: SequenceState{SequenceID: "drag-1", LastSeq: 2, HighestCounter: 2, Applied: 2},
		},
		{
			name: "failure then revert point then end",
			entries: []ir.JournalEntry{
				createSequencedEntry(1, "drag-1", 1, ir.OutcomeApplied),
				createSequencedEntry(2, "drag-1", 2, ir.OutcomeFailed),
				createSequencedEntry(3, "drag-1", 3, ir.OutcomeSkipped),
				revert,
				end,
			},
			want: SequenceState{
				SequenceID: "drag-1", LastSeq: 5, HighestCounter: 5,
				Applied: 2, Skipped: 2, Failed: true, Ended: true, Recovered: true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AnalyzeSequence("drag-1", tt.entries)
			got.Entries = nil
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetSequenceState(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	require.NoError(t, s.Append(ctx, createSequencedEntry(1, "drag-1", 1, ir.OutcomeApplied)))
	require.NoError(t, s.Append(ctx, createSequencedEntry(2, "drag-1", 2, ir.OutcomeFailed)))

	st, err := s.GetSequenceState(ctx, "drag-1")
	require.NoError(t, err)
	assert.Len(t, st.Entries, 2)
	assert.True(t, st.Failed)
	assert.False(t, st.Ended)
	assert.Equal(t, int64(2), st.HighestCounter)
}

func TestFindOpenSequences(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	end := createSequencedEntry(3, "drag-1", 2, ir.OutcomeApplied)
	end.Event.SequenceEnd = true

	require.NoError(t, s.Append(ctx, createSequencedEntry(1, "drag-1", 1, ir.OutcomeApplied)))
	require.NoError(t, s.Append(ctx, createSequencedEntry(2, "drag-2", 1, ir.OutcomeApplied)))
	require.NoError(t, s.Append(ctx, end))
	require.NoError(t, s.Append(ctx, createTestEntry(4, "chat:typing", nil)))
	require.NoError(t, s.Append(ctx, createSequencedEntry(5, "drag-3", 1, ir.OutcomeFailed)))

	open, err := s.FindOpenSequences(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"drag-2", "drag-3"}, open)
}
