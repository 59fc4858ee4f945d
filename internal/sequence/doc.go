// Package sequence tracks ordering and failure state for event sequences.
//
// A sequence is one logical multi-step user operation (a drag emitting many
// incremental position updates, a bulk import) whose events must apply in
// strictly increasing counter order and must stop applying once a step has
// failed, until a revert-point event resynchronises the domain state.
//
// Trackers live in a bounded Table: an LRU keyed by sequence id whose entries
// expire after a period without activity. Sequences that delivered their
// sequenceEnd event move to a short-lived ended table so late duplicates are
// still recognised as stale instead of opening a fresh sequence.
package sequence
