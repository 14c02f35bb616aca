package ir

import "strings"

// Lifecycle markers recognised by the saga controller.
const (
	Mount   = "@@nsaga/MOUNT"
	Unmount = "@@nsaga/UNMOUNT"
)

// Separator joins a namespace (or a wrap fragment) to the label that follows it.
const Separator = "."

// Dispatch injects an event into the global stream.
//
// Implementations must not block and must not re-enter the reducer
// synchronously; tasks call Dispatch while holding their cancellation lock.
type Dispatch func(Event)

// Effect is a deferred side effect. It runs at a later cooperative turn and
// receives a dispatch function for events it wants to inject.
type Effect func(dispatch Dispatch) error

// Exec is the side-effect execution handle attached to an event by the host
// loop. Calling it schedules the effect; it never runs the effect inline.
type Exec func(Effect)

// Event is an immutable record flowing through the reducer.
type Event struct {
	// Type is the event label, possibly namespace-prefixed ("X.Inc").
	Type string

	// Namespace scopes the event to one task instance. Empty is the root.
	Namespace string

	// Wrap is the label prefix already consumed by enclosing matchers.
	Wrap string

	// Arg is an optional opaque payload.
	Arg any

	// Exec is the side-effect handle; nil when the host supplies none.
	Exec Exec
}

// Scope prefixes typ with ns. The root namespace leaves typ unchanged.
func Scope(ns, typ string) string {
	if ns == "" {
		return typ
	}
	return ns + Separator + typ
}

// Scoped returns a copy of e whose type is prefixed with ns.
func (e Event) Scoped(ns string) Event {
	e.Type = Scope(ns, e.Type)
	return e
}

// WithExec returns a copy of e carrying the given side-effect handle.
func (e Event) WithExec(exec Exec) Event {
	e.Exec = exec
	return e
}

// IsLifecycle reports whether e is a mount or unmount marker.
func (e Event) IsLifecycle() bool {
	return e.Type == Mount || e.Type == Unmount
}

// Unscope strips the ns prefix from typ. ok is false when typ is not scoped
// under ns.
func Unscope(ns, typ string) (rest string, ok bool) {
	if ns == "" {
		return typ, true
	}
	return strings.CutPrefix(typ, ns+Separator)
}
