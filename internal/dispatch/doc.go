// Package dispatch is the client side of event delivery.
//
// A Dispatcher owns a FIFO of outgoing events and a single Run loop that
// sends them one at a time through a Transport, retrying transient failures
// with jittered exponential backoff. Debounce collapses a burst of local
// edits (a drag emitting a move per frame) into the last event of the burst.
// Sequence stamps the steps of one user operation with a shared id and
// increasing counters so the backend can order them and recover after a
// failed step.
package dispatch
