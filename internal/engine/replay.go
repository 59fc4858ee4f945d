package engine

import (
	"context"
	"log/slog"

	"github.com/roach88/cowork/internal/ir"
)

// ReplayResult summarizes a journal replay.
type ReplayResult struct {
	Entries int `json:"entries"`
	Applied int `json:"applied"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`

	// Mismatches lists the seqs whose replayed outcome differs from the
	// journaled one.
	Mismatches []int64 `json:"mismatches,omitempty"`
}

// Replay re-runs journaled events in seq order through the normal
// ProcessEvent path.
//
// Replay uses the journaled user id and receive time as the request
// context, so reducers that timestamp produce the same state. Skips are
// reproduced by the sequence table, not by trusting the journal. The
// processor should be fresh and should not carry a journal, or entries
// would be appended twice.
func (p *Processor) Replay(ctx context.Context, entries []ir.JournalEntry) (ReplayResult, error) {
	var res ReplayResult
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Entries++

		outcome := p.replayOne(ctx, e)
		switch outcome {
		case ir.OutcomeApplied:
			res.Applied++
		case ir.OutcomeSkipped:
			res.Skipped++
		case ir.OutcomeFailed:
			res.Failed++
		}

		if outcome != e.Outcome {
			slog.Warn("replay outcome mismatch",
				"seq", e.Seq,
				"type", e.Event.Type,
				"journaled", e.Outcome,
				"replayed", outcome,
			)
			res.Mismatches = append(res.Mismatches, e.Seq)
		}
	}
	return res, nil
}

func (p *Processor) replayOne(ctx context.Context, e ir.JournalEntry) ir.Outcome {
	rc := ir.RequestContext{UserID: e.UserID, Time: e.ReceivedAt}
	outcome, _ := p.process(ctx, e.Event, rc)
	return outcome
}

// Restore rebuilds state from the processor's own journal on restart. It
// replays like Replay but appends nothing, so the journal is not doubled.
// Call it before the processor takes live traffic; the clock should already
// start at the journal's last seq (WithClock(NewClockAt(last))).
func (p *Processor) Restore(ctx context.Context, entries []ir.JournalEntry) (ReplayResult, error) {
	j := p.journal
	p.journal = nil
	defer func() { p.journal = j }()

	res, err := p.Replay(ctx, entries)
	if err != nil {
		return res, err
	}
	slog.Info("state restored",
		"entries", res.Entries,
		"applied", res.Applied,
		"mismatches", len(res.Mismatches),
	)
	return res, nil
}
