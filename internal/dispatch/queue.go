package dispatch

import (
	"context"
	"sync"

	"github.com/roach88/cowork/internal/ir"
)

// pending is one queued event. done is nil for fire-and-forget sends.
type pending struct {
	ctx  context.Context
	ev   ir.Event
	done chan error
}

// sendQueue is a thread-safe FIFO of pending sends.
//
// The queue is unbounded: local edits never block the caller. The Run loop
// is the only consumer, which keeps exactly one event in flight.
//
// A buffered signal channel (size 1) lets the Run loop wait with select
// alongside ctx.Done().
type sendQueue struct {
	mu     sync.Mutex
	items  []pending
	closed bool
	signal chan struct{}
}

func newSendQueue() *sendQueue {
	return &sendQueue{
		items:  make([]pending, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds p to the back of the queue.
// Returns false if the queue is closed.
func (q *sendQueue) Enqueue(p pending) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.items = append(q.items, p)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front item without blocking.
func (q *sendQueue) TryDequeue() (pending, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return pending{}, false
	}

	p := q.items[0]
	q.items[0] = pending{} // release the event for GC
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return p, true
}

// Wait returns a channel that signals when items may be available.
// The channel is closed when the queue is closed.
func (q *sendQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *sendQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Drained reports whether the queue is closed and empty.
func (q *sendQueue) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.items) == 0
}

// Close stops further enqueues and wakes the consumer.
func (q *sendQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
