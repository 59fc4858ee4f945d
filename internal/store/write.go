package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/cowork/internal/ir"
)

// Append inserts a journal entry.
// Uses ON CONFLICT(seq) DO NOTHING for idempotency - a duplicate seq is
// silently ignored. Other constraint violations (e.g. an unknown outcome)
// still return errors.
//
// Implements engine.Journal.
func (s *Store) Append(ctx context.Context, e ir.JournalEntry) error {
	return appendEntry(ctx, s.db, e)
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func appendEntry(ctx context.Context, db execer, e ir.JournalEntry) error {
	envelope, err := marshalEnvelope(e.Event)
	if err != nil {
		return fmt.Errorf("append seq %d: %w", e.Seq, err)
	}

	var seqID sql.NullString
	var seqCounter sql.NullInt64
	if e.Event.Sequenced() {
		seqID = sql.NullString{String: e.Event.SequenceID, Valid: true}
		seqCounter = sql.NullInt64{Int64: e.Event.SequenceCounter, Valid: true}
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO events
		(seq, event_id, type, sequence_id, sequence_counter, envelope, user_id, received_at, outcome, error, engine_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`,
		e.Seq,
		e.EventID,
		e.Event.Type,
		seqID,
		seqCounter,
		envelope,
		e.UserID,
		timeToColumn(e.ReceivedAt),
		string(e.Outcome),
		e.Error,
		ir.EngineVersion,
	)
	if err != nil {
		return fmt.Errorf("append seq %d: %w", e.Seq, err)
	}
	return nil
}

// AppendBatch inserts entries in one transaction. Either all entries are
// written or none are.
func (s *Store) AppendBatch(ctx context.Context, entries []ir.JournalEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() // No-op after Commit

	for _, e := range entries {
		if err := appendEntry(ctx, tx, e); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
