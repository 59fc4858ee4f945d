package store

import (
	"database/sql"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/roach88/cowork/internal/ir"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testEpoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// createTestEntry builds an applied entry for an unsequenced event.
func createTestEntry(seq int64, eventType string, fields ir.IRObject) ir.JournalEntry {
	ev := ir.Event{Type: eventType, Fields: fields}
	return ir.JournalEntry{
		Seq:        seq,
		EventID:    ir.MustEventID(ev),
		Event:      ev,
		UserID:     "alice",
		ReceivedAt: testEpoch.Add(time.Duration(seq) * time.Second),
		Outcome:    ir.OutcomeApplied,
	}
}

// createSequencedEntry builds an entry for one step of a sequence.
func createSequencedEntry(seq int64, sequenceID string, counter int64, outcome ir.Outcome) ir.JournalEntry {
	ev := ir.Event{
		Type:            "graph:move-node",
		SequenceID:      sequenceID,
		SequenceCounter: counter,
		Fields:          ir.O("id", "A", "x", counter, "y", 0),
	}
	e := createTestEntry(seq, ev.Type, ev.Fields)
	e.Event = ev
	e.EventID = ir.MustEventID(ev)
	e.Outcome = outcome
	return e
}

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		t.Fatalf("table_info(%s) failed: %v", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan column: %v", err)
		}
		cols = append(cols, name)
	}
	return cols
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM pragma_index_list(?)", table)
	if err != nil {
		t.Fatalf("index_list(%s) failed: %v", table, err)
	}
	defer rows.Close()

	var idx []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan index: %v", err)
		}
		idx = append(idx, name)
	}
	return idx
}

func contains(list []string, s string) bool {
	return slices.Contains(list, s)
}
