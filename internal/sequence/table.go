package sequence

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Defaults for the bounded sequence table.
const (
	DefaultCapacity = 10000
	DefaultIdleTTL  = 10 * time.Minute
	DefaultEndedTTL = time.Minute
)

// TableOption configures a Table.
type TableOption func(*tableConfig)

type tableConfig struct {
	capacity int
	idleTTL  time.Duration
	endedTTL time.Duration
}

// WithCapacity bounds the number of live sequences. The least recently
// active sequence is evicted when the bound is reached.
func WithCapacity(n int) TableOption {
	return func(c *tableConfig) {
		c.capacity = n
	}
}

// WithIdleTTL sets how long a sequence survives without activity.
func WithIdleTTL(d time.Duration) TableOption {
	return func(c *tableConfig) {
		c.idleTTL = d
	}
}

// WithEndedTTL sets how long an ended sequence is remembered for
// duplicate rejection.
func WithEndedTTL(d time.Duration) TableOption {
	return func(c *tableConfig) {
		c.endedTTL = d
	}
}

// Table maps sequence ids to trackers with bounded size and expiry.
//
// Thread-safety: all methods are safe for concurrent use. Acquire is
// atomic, so two events racing on a new sequence id share one tracker.
type Table struct {
	mu     sync.Mutex
	active *expirable.LRU[string, *Tracker]
	ended  *expirable.LRU[string, *Tracker]
}

// NewTable creates a sequence table.
func NewTable(opts ...TableOption) *Table {
	cfg := tableConfig{
		capacity: DefaultCapacity,
		idleTTL:  DefaultIdleTTL,
		endedTTL: DefaultEndedTTL,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	onEvict := func(id string, t *Tracker) {
		slog.Debug("sequence evicted", "sequence_id", id, "failed", t.IsFailed(), "ended", t.Ended())
	}

	return &Table{
		active: expirable.NewLRU[string, *Tracker](cfg.capacity, onEvict, cfg.idleTTL),
		ended:  expirable.NewLRU[string, *Tracker](cfg.capacity, nil, cfg.endedTTL),
	}
}

// Acquire returns the tracker for id, creating it on first use.
// Every call counts as activity and restarts the idle TTL.
func (tb *Table) Acquire(id string) *Tracker {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if t, ok := tb.ended.Get(id); ok {
		return t
	}
	t, ok := tb.active.Get(id)
	if !ok {
		t = NewTracker(id)
	}
	tb.active.Add(id, t) // re-add refreshes expiry
	return t
}

// Lookup returns the tracker for id without creating or refreshing it.
func (tb *Table) Lookup(id string) (*Tracker, bool) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if t, ok := tb.ended.Peek(id); ok {
		return t, true
	}
	return tb.active.Peek(id)
}

// Finish moves a sequence to the ended table. Its tracker keeps rejecting
// stale counters until the ended TTL elapses.
func (tb *Table) Finish(id string) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	t, ok := tb.active.Peek(id)
	if !ok {
		return
	}
	t.End()
	tb.active.Remove(id)
	tb.ended.Add(id, t)
}

// Remove forgets a sequence entirely.
func (tb *Table) Remove(id string) {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.active.Remove(id)
	tb.ended.Remove(id)
}

// Len returns the number of live (not ended) sequences.
func (tb *Table) Len() int {
	return tb.active.Len()
}

// EndedLen returns the number of remembered ended sequences.
func (tb *Table) EndedLen() int {
	return tb.ended.Len()
}

// Purge drops every sequence.
func (tb *Table) Purge() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.active.Purge()
	tb.ended.Purge()
}
