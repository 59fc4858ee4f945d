package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/cowork/internal/ir"
)

const entryColumns = `seq, event_id, envelope, user_id, received_at, outcome, error`

// ReadEntries returns up to limit entries with seq > afterSeq, ordered by
// seq. A limit <= 0 means no limit.
//
// Returns an empty slice (not nil) if no entries match.
func (s *Store) ReadEntries(ctx context.Context, afterSeq int64, limit int) ([]ir.JournalEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM events WHERE seq > ? ORDER BY seq ASC`
	args := []any{afterSeq}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	return scanEntries(rows)
}

// ReadAll returns every entry in seq order.
func (s *Store) ReadAll(ctx context.Context) ([]ir.JournalEntry, error) {
	return s.ReadEntries(ctx, 0, 0)
}

// ReadSequence returns the entries of one sequence in seq order.
func (s *Store) ReadSequence(ctx context.Context, sequenceID string) ([]ir.JournalEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM events
		WHERE sequence_id = ?
		ORDER BY seq ASC
	`, sequenceID)
	if err != nil {
		return nil, fmt.Errorf("query sequence %s: %w", sequenceID, err)
	}
	return scanEntries(rows)
}

// ReadEntry retrieves a single entry by seq.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadEntry(ctx context.Context, seq int64) (ir.JournalEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM events WHERE seq = ?`, seq)
	return scanEntry(row)
}

// LastSeq returns the highest journaled seq, or 0 for an empty journal.
// Used on restart to resume the engine clock.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM events`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq.Int64, nil
}

// Stats summarizes the journal.
type Stats struct {
	Entries   int64 `json:"entries"`
	Applied   int64 `json:"applied"`
	Skipped   int64 `json:"skipped"`
	Failed    int64 `json:"failed"`
	Sequences int64 `json:"sequences"`
	LastSeq   int64 `json:"last_seq"`
}

// Stats returns entry counts by outcome plus the number of distinct
// sequences.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	var last sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(outcome = 'applied'), 0),
			COALESCE(SUM(outcome = 'skipped'), 0),
			COALESCE(SUM(outcome = 'failed'), 0),
			COUNT(DISTINCT sequence_id),
			MAX(seq)
		FROM events
	`).Scan(&st.Entries, &st.Applied, &st.Skipped, &st.Failed, &st.Sequences, &last)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	st.LastSeq = last.Int64
	return st, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (ir.JournalEntry, error) {
	var (
		e          ir.JournalEntry
		envelope   string
		receivedAt int64
		outcome    string
	)
	if err := row.Scan(&e.Seq, &e.EventID, &envelope, &e.UserID, &receivedAt, &outcome, &e.Error); err != nil {
		return ir.JournalEntry{}, err
	}

	ev, err := unmarshalEnvelope(envelope)
	if err != nil {
		return ir.JournalEntry{}, fmt.Errorf("entry seq %d: %w", e.Seq, err)
	}
	e.Event = ev
	e.ReceivedAt = timeFromColumn(receivedAt)
	e.Outcome = ir.Outcome(outcome)
	return e, nil
}

func scanEntries(rows *sql.Rows) ([]ir.JournalEntry, error) {
	defer rows.Close()

	entries := []ir.JournalEntry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return entries, nil
}
