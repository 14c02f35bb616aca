// Package harness runs YAML scenarios against compiled specs.
//
// A scenario names a CUE spec, an initial model and a list of steps. Each step
// enqueues one event into a fresh engine whose reducer is a saga controller
// built from the spec; the engine is drained before the next step.
//
// # Scenario Format
//
//	name: counter_lifecycle
//	description: "Mount, count, unmount"
//	spec: ../specs/counter.cue
//	model: { count: 0 }
//	steps:
//	  - mount: X
//	  - dispatch: { type: Inc, namespace: X }
//	  - unmount: X
//	assertions:
//	  - type: trace_order
//	    events: ["@@nsaga/MOUNT", Inc]
//	  - type: final_model
//	    expect: { count: 1 }
//	  - type: task_running
//	    namespace: X
//	    running: false
//
// # Assertion Types
//
//   - trace_contains: an event type (optionally namespace and arg) was processed
//   - trace_order: event types first appear in the given order
//   - trace_count: an event type was processed exactly N times
//   - final_model: the final accumulator contains the expected fields
//   - namespace_state: the registry state of a namespace contains the expected fields
//   - task_running: whether a namespace has a running task at the end
//   - notified: how many times a scenario listener on a namespace was called
//
// # Deterministic Testing
//
// Turns are numbered from 1, task ids are sequential and every effect of
// compiled tasks runs inside an engine turn, so a scenario produces the same
// trace on every run. Traces are compared against golden files with goldie.
package harness
