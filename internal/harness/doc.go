// Package harness runs YAML scenarios against an in-memory stack.
//
// Scenarios exercise the context hierarchy end to end: inserts, edits and
// deletes in named contexts, fetches with expectations, child saves and
// persists. Each run produces a trace that is compared against golden
// files.
//
// # Scenario Format
//
//	name: promote_child
//	description: "Child changes reach the store only through the foreground"
//	model: people          # <model>.cue or <model>.yaml
//	model_dir: ../models   # relative to the scenario file, default its dir
//	steps:
//	  - child: editor      # parent defaults to foreground
//	  - insert: Person
//	    context: editor
//	    ref: ada
//	    values: { name: Ada, age: 36 }
//	  - fetch: Person
//	    where: ["age>=30"]
//	    sort: ["name:desc"]
//	    expect: { count: 0 }
//	  - save: editor
//	  - persist: { async: true }
//	assertions:
//	  - type: final_count
//	    entity: Person
//	    count: 1
//
// # Step Types
//
//   - insert: Insert an entity instance, optionally naming it with ref
//   - set: Change attributes of a ref'd instance in a context
//   - fetch: Fetch with where/sort/limit, checking expect.count and expect.refs
//   - delete: Delete a ref'd instance in a context
//   - delete_all: Delete every instance of every entity in the foreground
//   - child: Create a named child context of parent
//   - save: Save one context into its parent
//   - rollback: Discard a context's unsaved changes
//   - persist: Save foreground then root, synchronously unless async is set
//
// Steps that can fail accept expect.error.
//
// # Assertion Types
//
//   - trace_count: A step type appears exactly N times in the trace
//   - trace_order: Step types appear in the given order
//   - final_count: The store holds exactly N instances of an entity
//   - final_state: A stored instance matching where has the expected values
//
// # Deterministic Testing
//
// Every run uses a fresh memory-medium store, sequential object IDs
// (obj-0001, obj-0002, ...) and a logical clock starting at zero, so the
// same scenario always produces a byte-identical trace.
package harness
