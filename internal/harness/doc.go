// Package harness runs YAML scenarios against a real workspace.
//
// Each scenario gets a fresh workspace (shared doc, processor, default
// modules), a manual wall clock starting at testutil.Epoch and an in-memory
// journal. Steps run in order; the journal doubles as the trace.
//
// # Scenario Format
//
//	name: drag_recovers_after_failure
//	description: "A failed drag step is skipped until the revert point"
//	ids: [chat-1]          # ids handed to reducers that generate them
//	present: [alice]       # users in awareness before the first step
//	steps:
//	  - user: alice
//	    at: 1s             # offset from the scenario start, non-decreasing
//	    event: {type: "graph:add-node", id: A}
//	  - user: alice
//	    event: {type: "graph:move-node", id: A, sequenceId: s1, sequenceCounter: 1}
//	    expect_error: malformed
//	  - tick: true         # one periodic heartbeat event
//	  - join: bob          # awareness only
//	  - leave: bob         # awareness removal plus a user-leave event
//	assertions:
//	  - path: graph.nodes/A/x
//	    equals: 10
//	  - path: chat.threads
//	    count: 1
//	  - path: graph.edges/A-B
//	    absent: true
//	  - outcomes: [applied, failed, applied]
//	golden: [graph.nodes]  # containers captured by RunWithGolden (default all)
//
// expect_error accepts "any", "malformed", or a reducer error code such as
// REDUCER_FAILED or REDUCER_PANIC. A step without expect_error must succeed.
//
// Paths start with a container name; later segments are object keys or
// array indexes, separated by "/".
//
// # Golden Files
//
// RunWithGolden stores the trace and the selected containers as canonical
// JSON under testdata/golden/{name}.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
