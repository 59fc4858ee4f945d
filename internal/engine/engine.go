package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/roach88/cowork/internal/ir"
	"github.com/roach88/cowork/internal/reducer"
	"github.com/roach88/cowork/internal/sequence"
	"github.com/roach88/cowork/internal/shared"
)

// DefaultHeartbeatInterval is the default period of the synthetic
// "periodic" event.
const DefaultHeartbeatInterval = 5 * time.Second

// Journal records processed events. Implemented by store.Store.
type Journal interface {
	Append(ctx context.Context, entry ir.JournalEntry) error
}

// Processor is the backend event processor.
//
// Thread-safety model:
//   - ProcessEvent, Batch, Tick: safe from any goroutine
//   - LoadReducers: safe from any goroutine; normally called once at startup
//   - RunHeartbeat: call from exactly one goroutine
//
// INVARIANTS:
//   - reducers order NEVER changes except by appending (registration order
//     is invocation order)
//   - events of one sequence are processed one at a time
//   - journal seq order is apply order: an event is applied and journaled
//     under commitMu
//   - a reducer that handles an event type is never skipped by the index
type Processor struct {
	mu       sync.RWMutex
	reducers []reducer.Reducer
	byType   map[string][]int // event type -> indices into reducers
	wildcard []int            // reducers that see every event

	commitMu sync.Mutex // held from reducer chain start until the entry is journaled

	sequences *sequence.Table
	doc       *shared.Doc
	journal   Journal
	clock     *Clock
	interval  time.Duration
	now       func() time.Time
}

// Option configures a Processor.
type Option func(*Processor)

// WithHeartbeatInterval sets the period of the synthetic periodic event.
//
// Default: 5s (DefaultHeartbeatInterval)
func WithHeartbeatInterval(d time.Duration) Option {
	return func(p *Processor) {
		p.interval = d
	}
}

// WithSequenceTable replaces the default sequence table.
func WithSequenceTable(t *sequence.Table) Option {
	return func(p *Processor) {
		p.sequences = t
	}
}

// WithJournal records every processed event.
func WithJournal(j Journal) Option {
	return func(p *Processor) {
		p.journal = j
	}
}

// WithDoc wraps each event's reducer chain in one transaction of doc, so
// observers see an event's writes as a single batch.
func WithDoc(doc *shared.Doc) Option {
	return func(p *Processor) {
		p.doc = doc
	}
}

// WithClock sets the logical clock for journal entries. Used on restart to
// resume after the last journaled seq.
func WithClock(c *Clock) Option {
	return func(p *Processor) {
		p.clock = c
	}
}

// WithNow sets the time source for heartbeat events.
func WithNow(now func() time.Time) Option {
	return func(p *Processor) {
		p.now = now
	}
}

// New creates a Processor with no reducers.
func New(opts ...Option) *Processor {
	p := &Processor{
		byType:   make(map[string][]int),
		clock:    NewClock(),
		interval: DefaultHeartbeatInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.sequences == nil {
		p.sequences = sequence.NewTable()
	}
	return p
}

// Sequences returns the sequence table.
func (p *Processor) Sequences() *sequence.Table {
	return p.sequences
}

// Clock returns the journal clock.
func (p *Processor) Clock() *Clock {
	return p.clock
}

// LoadReducers appends reducers. Registration order is invocation order.
func (p *Processor) LoadReducers(rs ...reducer.Reducer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, r := range rs {
		idx := len(p.reducers)
		p.reducers = append(p.reducers, r)

		var types []string
		if router, ok := r.(reducer.Router); ok {
			types = router.Handles()
		}
		if len(types) == 0 {
			p.wildcard = append(p.wildcard, idx)
			for t := range p.byType {
				p.byType[t] = append(p.byType[t], idx)
			}
			continue
		}
		for _, t := range types {
			chain, ok := p.byType[t]
			if !ok {
				chain = slices.Clone(p.wildcard)
			}
			if !slices.Contains(chain, idx) {
				chain = append(chain, idx)
			}
			p.byType[t] = chain
		}
	}
}

// Reducers returns the registered reducer names in invocation order.
func (p *Processor) Reducers() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, len(p.reducers))
	for i, r := range p.reducers {
		names[i] = r.Name()
	}
	return names
}

// chain returns the reducers to invoke for an event type, in registration
// order.
func (p *Processor) chain(eventType string) []reducer.Reducer {
	p.mu.RLock()
	defer p.mu.RUnlock()

	idx, ok := p.byType[eventType]
	if !ok {
		idx = p.wildcard
	}
	out := make([]reducer.Reducer, len(idx))
	for i, j := range idx {
		out[i] = p.reducers[j]
	}
	return out
}

// ProcessEvent applies one event.
//
// Returns nil when the event was applied or skipped as stale. Returns a
// *ReducerError when a reducer failed; the event's sequence is then marked
// failed and only revert points are applied from then on.
func (p *Processor) ProcessEvent(ctx context.Context, ev ir.Event, rc ir.RequestContext) error {
	_, err := p.process(ctx, ev, rc)
	return err
}

func (p *Processor) process(ctx context.Context, ev ir.Event, rc ir.RequestContext) (ir.Outcome, error) {
	if !ev.Sequenced() {
		return p.apply(ctx, ev, rc)
	}

	tr := p.sequences.Acquire(ev.SequenceID)
	tr.Lock()
	defer tr.Unlock()

	if ev.SequenceEnd {
		defer p.sequences.Finish(ev.SequenceID)
	}

	if !tr.AddEvent(ev) && !ev.SequenceRevertPoint {
		slog.Debug("event skipped",
			"type", ev.Type,
			"sequence_id", ev.SequenceID,
			"sequence_counter", ev.SequenceCounter,
			"sequence_failed", tr.IsFailed(),
		)
		p.commitMu.Lock()
		p.record(ctx, ev, rc, ir.OutcomeSkipped, nil)
		p.commitMu.Unlock()
		return ir.OutcomeSkipped, nil
	}

	outcome, err := p.apply(ctx, ev, rc)
	if err != nil {
		tr.SetFailed()
	}
	return outcome, err
}

// apply runs the reducer chain and journals the outcome.
func (p *Processor) apply(ctx context.Context, ev ir.Event, rc ir.RequestContext) (ir.Outcome, error) {
	p.commitMu.Lock()
	defer p.commitMu.Unlock()

	run := func(ctx context.Context) error {
		for _, r := range p.chain(ev.Type) {
			if err := invoke(ctx, r, ev, rc); err != nil {
				return err
			}
		}
		return nil
	}

	var err error
	if p.doc != nil {
		err = p.doc.Transact(ctx, run)
	} else {
		err = run(ctx)
	}

	if err != nil {
		slog.Error("event failed",
			"type", ev.Type,
			"sequence_id", ev.SequenceID,
			"sequence_counter", ev.SequenceCounter,
			"user_id", rc.UserID,
			"error", err,
		)
		p.record(ctx, ev, rc, ir.OutcomeFailed, err)
		return ir.OutcomeFailed, err
	}

	slog.Debug("event applied",
		"type", ev.Type,
		"sequence_id", ev.SequenceID,
		"sequence_counter", ev.SequenceCounter,
		"user_id", rc.UserID,
	)
	p.record(ctx, ev, rc, ir.OutcomeApplied, nil)
	return ir.OutcomeApplied, nil
}

// invoke calls one reducer, converting errors and panics into ReducerError.
func invoke(ctx context.Context, r reducer.Reducer, ev ir.Event, rc ir.RequestContext) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &ReducerError{
				Code:       ErrCodeReducerPanic,
				Reducer:    r.Name(),
				EventType:  ev.Type,
				SequenceID: ev.SequenceID,
				Err:        fmt.Errorf("panic: %v", v),
			}
		}
	}()

	if err := r.Reduce(ctx, ev, rc); err != nil {
		return &ReducerError{
			Code:       ErrCodeReducerFailed,
			Reducer:    r.Name(),
			EventType:  ev.Type,
			SequenceID: ev.SequenceID,
			Err:        err,
		}
	}
	return nil
}

// record appends a journal entry. Journal failures are logged, never
// returned: the event already took effect.
func (p *Processor) record(ctx context.Context, ev ir.Event, rc ir.RequestContext, outcome ir.Outcome, cause error) {
	if p.journal == nil {
		return
	}

	id, err := ir.EventID(ev)
	if err != nil {
		slog.Warn("journal: event id", "type", ev.Type, "error", err)
		return
	}

	entry := ir.JournalEntry{
		Seq:        p.clock.Next(),
		EventID:    id,
		Event:      ev,
		UserID:     rc.UserID,
		ReceivedAt: rc.Time,
		Outcome:    outcome,
	}
	if cause != nil {
		entry.Error = cause.Error()
	}

	if err := p.journal.Append(ctx, entry); err != nil {
		slog.Warn("journal append failed",
			"seq", entry.Seq,
			"event_id", id,
			"type", ev.Type,
			"error", err,
		)
	}
}

// Batch processes events sequentially in order. It stops at the first
// failure and returns a *BatchError carrying its index.
func (p *Processor) Batch(ctx context.Context, evs []ir.Event, rc ir.RequestContext) error {
	for i, ev := range evs {
		if err := ctx.Err(); err != nil {
			return &BatchError{Index: i, EventType: ev.Type, Err: err}
		}
		if err := p.ProcessEvent(ctx, ev, rc); err != nil {
			return &BatchError{Index: i, EventType: ev.Type, Err: err}
		}
	}
	return nil
}

// Tick processes one synthetic periodic event. Failures are logged only.
func (p *Processor) Tick(ctx context.Context) {
	ev := ir.Event{Type: ir.EventTypePeriodic}
	rc := ir.RequestContext{UserID: ir.GatewayUserID, Time: p.now()}

	if err := p.ProcessEvent(ctx, ev, rc); err != nil {
		slog.Error("periodic event failed", "error", err)
	}
}

// RunHeartbeat ticks every heartbeat interval until ctx is cancelled.
func (p *Processor) RunHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	slog.Info("heartbeat starting", "interval", p.interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("heartbeat stopping: context cancelled")
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}
