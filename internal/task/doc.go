// Package task runs one long-lived saga per namespace.
//
// A Runner turns a saga definition into a running task and returns a Handle
// that can cancel it. The task never touches the registry or the event stream
// directly; it receives a Capabilities value with three operations:
//
//   - Subscribe: listen for the namespace's publishes
//   - Emit: re-inject an event, its type prefixed with the namespace
//   - State: read the namespace's last published state
//
// # Cancellation
//
// Cancel is synchronous from the caller's point of view. Every capability
// checks the handle's cancelled flag under the handle lock, so once Cancel
// returns the task can no longer emit, read state or subscribe, even if its
// goroutine has not yet observed ctx.Done(). Cancel is idempotent: only the
// first call reaches the underlying context.CancelFunc.
//
// # Failures
//
// A saga whose definition fails during initialisation is never started and
// Start returns the error. A body that fails after start records its error on
// the handle (Err) and reports it to the runner's exit handler; it is not
// swallowed.
package task
