package dispatch

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/roach88/cowork/internal/ir"
)

// Transport ships one event to the backend and waits for its ack.
// A nil error is the ack. Errors wrapped with Permanent are not retried.
type Transport interface {
	Send(ctx context.Context, ev ir.Event) error
}

// Defaults for Dispatcher options.
const (
	DefaultMaxRetries  = 3
	DefaultBaseBackoff = 100 * time.Millisecond
	DefaultMaxBackoff  = 5 * time.Second
	DefaultDebounce    = 50 * time.Millisecond
)

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMaxRetries sets how many times a transient failure is retried.
// Zero disables retries.
func WithMaxRetries(n int) Option {
	return func(d *Dispatcher) {
		d.maxRetries = max(n, 0)
	}
}

// WithBackoff sets the first retry delay and the cap. Each retry doubles
// the delay; the actual wait is jittered into [delay/2, delay].
func WithBackoff(base, maxDelay time.Duration) Option {
	return func(d *Dispatcher) {
		d.baseBackoff = base
		d.maxBackoff = maxDelay
	}
}

// WithDebounce sets the quiet window used by Debounce.
func WithDebounce(window time.Duration) Option {
	return func(d *Dispatcher) {
		d.debounce = window
	}
}

// Dispatcher serializes events to a Transport, one in flight at a time.
//
// Callers either Dispatch (wait for the ack) or Debounce (collapse a rapid
// edit stream, fire and forget). Run must be running for anything to be
// sent.
type Dispatcher struct {
	transport Transport
	queue     *sendQueue

	maxRetries  int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	debounce    time.Duration

	mu      sync.Mutex
	waiting map[string]*debounced
	stamp   uint64
	closed  bool
}

// debounced is one event waiting out its quiet window. stamp orders
// waiting events by when they were last produced.
type debounced struct {
	ev    ir.Event
	timer *time.Timer
	stamp uint64
}

// New creates a dispatcher sending through t.
func New(t Transport, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		transport:   t,
		queue:       newSendQueue(),
		maxRetries:  DefaultMaxRetries,
		baseBackoff: DefaultBaseBackoff,
		maxBackoff:  DefaultMaxBackoff,
		debounce:    DefaultDebounce,
		waiting:     make(map[string]*debounced),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run drains the queue until ctx is cancelled or the dispatcher is closed
// and empty. Only one Run loop may be active.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		if p, ok := d.queue.TryDequeue(); ok {
			d.deliver(ctx, p)
			continue
		}
		if d.queue.Drained() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.queue.Wait():
		}
	}
}

// Dispatch enqueues ev and blocks until it is acked, fails permanently,
// exhausts its retries, or ctx is cancelled.
//
// Debounced events produced before ev are enqueued ahead of it, so the
// backend sees events in the order they were produced.
func (d *Dispatcher) Dispatch(ctx context.Context, ev ir.Event) error {
	done := make(chan error, 1)

	d.mu.Lock()
	d.flushLocked(nil)
	ok := d.queue.Enqueue(pending{ctx: ctx, ev: ev, done: done})
	d.mu.Unlock()
	if !ok {
		return ErrClosed
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Debounce schedules ev under key. Another call with the same key inside
// the quiet window replaces the event and restarts the window; the last
// event is enqueued once the window passes.
//
// Events of the same sequence waiting under other keys are enqueued
// first, so counters reach the backend in increasing order.
func (d *Dispatcher) Debounce(key string, ev ir.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		slog.Warn("debounce after close", "key", key, "type", ev.Type)
		return
	}

	if ev.SequenceID != "" {
		d.flushLocked(func(k string, w *debounced) bool {
			return k != key && w.ev.SequenceID == ev.SequenceID
		})
	}

	d.stamp++
	if w, ok := d.waiting[key]; ok {
		w.ev = ev
		w.stamp = d.stamp
		w.timer.Reset(d.debounce)
		return
	}

	w := &debounced{ev: ev, stamp: d.stamp}
	w.timer = time.AfterFunc(d.debounce, func() { d.fire(key, w) })
	d.waiting[key] = w
}

func (d *Dispatcher) fire(key string, w *debounced) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// A Flush or a newer entry may have replaced w.
	if d.waiting[key] != w {
		return
	}
	delete(d.waiting, key)
	d.queue.Enqueue(pending{ctx: context.Background(), ev: w.ev})
}

// Flush enqueues every debounced event immediately, oldest first.
func (d *Dispatcher) Flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flushLocked(nil)
}

// flushLocked enqueues the waiting events selected by keep (all when nil)
// in the order they were produced. d.mu must be held.
func (d *Dispatcher) flushLocked(keep func(key string, w *debounced) bool) {
	if len(d.waiting) == 0 {
		return
	}

	keys := make([]string, 0, len(d.waiting))
	for key, w := range d.waiting {
		if keep == nil || keep(key, w) {
			keys = append(keys, key)
		}
	}
	slices.SortFunc(keys, func(a, b string) int {
		return cmp.Compare(d.waiting[a].stamp, d.waiting[b].stamp)
	})

	for _, key := range keys {
		w := d.waiting[key]
		w.timer.Stop()
		delete(d.waiting, key)
		d.queue.Enqueue(pending{ctx: context.Background(), ev: w.ev})
	}
}

// Pending returns the number of queued sends plus debounced events.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	n := len(d.waiting)
	d.mu.Unlock()
	return n + d.queue.Len()
}

// Close flushes debounced events and stops accepting new ones. Run returns
// once everything queued before Close has been delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.closed = true
	d.flushLocked(nil)
	d.queue.Close()
}

// deliver sends p with retries and reports the result to its waiter.
func (d *Dispatcher) deliver(runCtx context.Context, p pending) {
	err := d.send(runCtx, p)
	if p.done != nil {
		p.done <- err
		return
	}
	if err != nil {
		slog.Error("debounced dispatch failed", "type", p.ev.Type, "error", err)
	}
}

func (d *Dispatcher) send(runCtx context.Context, p pending) error {
	ctx, cancel := mergeCancel(runCtx, p.ctx)
	defer cancel()

	var err error
	for attempt := 0; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		err = d.transport.Send(ctx, p.ev)
		if err == nil {
			return nil
		}
		if IsPermanent(err) {
			return err
		}
		if attempt >= d.maxRetries {
			return fmt.Errorf("dispatch %s: giving up after %d attempts: %w", p.ev.Type, attempt+1, err)
		}

		delay := d.backoff(attempt)
		slog.Debug("dispatch retry",
			"type", p.ev.Type,
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// backoff returns the jittered delay before retry attempt+1.
func (d *Dispatcher) backoff(attempt int) time.Duration {
	delay := d.baseBackoff << min(attempt, 30)
	if delay <= 0 || delay > d.maxBackoff {
		delay = d.maxBackoff
	}
	if delay <= 0 {
		return 0
	}
	half := delay / 2
	return half + rand.N(delay-half+1)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// mergeCancel returns a context derived from a that is also cancelled when
// b is done.
func mergeCancel(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
