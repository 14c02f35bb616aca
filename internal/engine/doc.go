// Package engine is the host dispatch loop that drives a reducer.
//
// The engine owns the accumulator and a FIFO queue of events. Each turn
// dequeues one event, attaches an Exec handle, runs the reducer and then runs
// every effect the reducer scheduled, in the order they were scheduled.
// Effects receive Dispatch, which only enqueues, so nothing an effect or task
// does can re-enter the reducer.
//
// Single-writer loop:
//
//   - Dispatch/Enqueue: safe from any goroutine (tasks emit from their own)
//   - Step, Drain, Run: must be called from exactly one goroutine
//   - State: safe from any goroutine
//
// Every turn is stamped with a monotonic sequence number from Clock. Wall-clock
// time is never used for ordering.
//
// Error handling: Step and Drain return effect errors to the caller. Run logs
// them, reports them to observers and continues with the next event. State
// committed before a failing effect is never rolled back.
package engine
