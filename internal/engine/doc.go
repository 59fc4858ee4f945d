// Package engine implements the backend event processor.
//
// The processor is the authoritative entry point for mutation events. For
// each event it resolves the sequence, decides accept, skip or fail, and
// runs the event through every registered reducer in registration order.
//
// Event Processing Flow:
//  1. Sequenced events acquire their tracker and hold its lock for the whole
//     event, so events of one sequence never interleave.
//  2. Stale or duplicate counters are skipped silently, unless the event is a
//     revert point.
//  3. Reducers run sequentially, inside one shared-store transaction when a
//     Doc is configured.
//  4. A reducer error or panic marks the sequence failed and is returned.
//  5. Every processed event is appended to the journal with its outcome.
//
// A heartbeat goroutine feeds a synthetic "periodic" event through the same
// path. Heartbeat failures are logged, never returned.
//
// Journal entries are stamped from a logical Clock, never from wall-clock
// time, so replay reproduces the original order.
package engine
