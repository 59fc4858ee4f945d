package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cowork/internal/engine"
	"github.com/roach88/cowork/internal/ids"
	"github.com/roach88/cowork/internal/ir"
)

// appliedCounters is a wildcard reducer recording the counters of the
// events the processor applied.
type appliedCounters struct {
	mu   sync.Mutex
	seen []int64
}

func (a *appliedCounters) Name() string { return "applied" }

func (a *appliedCounters) Reduce(_ context.Context, ev ir.Event, _ ir.RequestContext) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seen = append(a.seen, ev.SequenceCounter)
	return nil
}

func (a *appliedCounters) Counters() []int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]int64(nil), a.seen...)
}

// processorTransport delivers events straight into a backend processor.
type processorTransport struct {
	p *engine.Processor
}

func (t processorTransport) Send(ctx context.Context, ev ir.Event) error {
	return t.p.ProcessEvent(ctx, ev, ir.RequestContext{UserID: "alice", Time: time.Now()})
}

func TestDispatch_SendsDebouncedStepFirst(t *testing.T) {
	applied := &appliedCounters{}
	p := engine.New()
	p.LoadReducers(applied)

	d := New(processorTransport{p: p}, WithDebounce(time.Hour))
	startDispatcher(t, d)

	ctx := context.Background()
	seq := NewSequence(ids.NewFixed("drag-1"))
	move := func(x int) ir.Event {
		return ir.Event{Type: "graph:move-node", Fields: ir.O("id", "A", "x", x, "y", 0)}
	}

	require.NoError(t, d.Dispatch(ctx, seq.Revert(move(0))))
	d.Debounce(seq.ID(), seq.Next(move(10)))
	d.Debounce(seq.ID(), seq.Next(move(20)))
	require.NoError(t, d.Dispatch(ctx, seq.End(move(30))))

	// The second debounced step replaced the first, so counter 2 is never sent.
	assert.Equal(t, []int64{1, 3, 4}, applied.Counters())
	assert.Zero(t, d.Pending())
}

func TestDebounce_SameSequenceOtherKeyGoesFirst(t *testing.T) {
	tr := &fakeTransport{}
	d := New(tr, WithDebounce(time.Hour))
	startDispatcher(t, d)

	seq := NewSequence(ids.NewFixed("resize-1"))
	d.Debounce("width", seq.Next(typed("graph:update-node")))
	d.Debounce("height", seq.Next(typed("graph:update-node")))
	d.Debounce("other", typed("chat:typing"))

	require.Eventually(t, func() bool { return len(tr.Sent()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), tr.Sent()[0].SequenceCounter)
	assert.Equal(t, 2, d.Pending())

	d.Flush()
	require.Eventually(t, func() bool { return len(tr.Sent()) == 3 }, time.Second, 5*time.Millisecond)
	sent := tr.Sent()
	assert.Equal(t, int64(2), sent[1].SequenceCounter)
	assert.Equal(t, "chat:typing", sent[2].Type)
}

func TestFlush_ProductionOrder(t *testing.T) {
	tr := &fakeTransport{}
	d := New(tr, WithDebounce(time.Hour))
	startDispatcher(t, d)

	d.Debounce("c", typed("tabs:activate"))
	d.Debounce("a", typed("selection:set"))
	d.Debounce("b", typed("chat:typing"))
	// Replacing c makes it the most recent.
	d.Debounce("c", typed("tabs:rename"))
	d.Flush()

	require.Eventually(t, func() bool { return len(tr.Sent()) == 3 }, time.Second, 5*time.Millisecond)
	var types []string
	for _, ev := range tr.Sent() {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []string{"selection:set", "chat:typing", "tabs:rename"}, types)
}
