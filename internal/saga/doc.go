// Package saga is the lifecycle controller: a reducer that also mounts and
// unmounts one long-running task per namespace.
//
// The controller is built once with New and RegisterCase, then handed to the
// host loop through ToReducer. For every event the returned reducer:
//
//  1. Returns the accumulator unchanged for a nil event.
//  2. On ir.Mount for a namespace without a task, schedules a start through the
//     event's Exec handle. The start stores the accumulator as the namespace's
//     state and launches the task.
//  3. On ir.Unmount for a namespace with a task, cancels the task and removes
//     its handle before returning. State and subscribers are kept.
//  4. Otherwise runs the matcher chain and, when the namespace has a task,
//     schedules a publish: store the new accumulator and notify subscribers in
//     registration order.
//
// A controller without a saga (no WithSaga option) is a pure reducer and never
// touches the registry.
//
// # Remounting
//
// A mount for a namespace whose task is running, or whose start is already
// scheduled, is ignored and handed to the matcher like any other event. An
// unmount that arrives before a scheduled start has run withdraws the start.
package saga
