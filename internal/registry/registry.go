// Package registry stores per-namespace saga bookkeeping.
//
// A Registry holds three parallel mappings keyed by namespace: the last
// published state, the subscriber list and the running task handle. It has no
// behavior beyond storage and notification fan-out; the saga controller decides
// when each mapping changes.
//
// Entries are created lazily. State and subscribers outlive the task that
// produced them so a remounted namespace picks up where it left off; only the
// task handle is removed on stop.
//
// Thread-safety: all methods are safe for concurrent use. One mutex guards all
// three maps; listeners are always invoked with the mutex released.
package registry

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/roach88/nsaga/internal/ir"
)

// ErrTaskExists is returned by SetTask when the namespace already has a handle.
var ErrTaskExists = errors.New("registry: namespace already has a running task")

// Listener is invoked after a namespace publishes a new state.
// ev is the event that produced state.
type Listener[S any] func(ev ir.Event, state S)

// Handle is the registry's view of a running task.
type Handle interface {
	ID() string
	Cancel()
	Cancelled() bool
}

type subscription[S any] struct {
	id     uint64
	fn     Listener[S]
	active atomic.Bool
}

// Registry owns the state, subscriber and task mappings for every namespace.
// The zero value is not usable; call New.
type Registry[S any] struct {
	mu          sync.Mutex
	states      map[string]S
	subscribers map[string][]*subscription[S]
	tasks       map[string]Handle
	nextID      uint64 // shared across namespaces so ids are unique per registry
}

// New creates an empty registry.
func New[S any]() *Registry[S] {
	return &Registry[S]{
		states:      make(map[string]S),
		subscribers: make(map[string][]*subscription[S]),
		tasks:       make(map[string]Handle),
	}
}

// State returns the last published state of ns.
func (r *Registry[S]) State(ns string) (S, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.states[ns]
	return s, ok
}

// SetState records s as the last published state of ns.
func (r *Registry[S]) SetState(ns string, s S) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.states[ns] = s
}

// Subscribe registers fn for ns and returns its id and an unregistration
// function. Calling the unregistration function more than once is a no-op.
func (r *Registry[S]) Subscribe(ns string, fn Listener[S]) (uint64, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	sub := &subscription[S]{id: r.nextID, fn: fn}
	sub.active.Store(true)
	r.subscribers[ns] = append(r.subscribers[ns], sub)

	id := sub.id
	return id, func() { r.Unsubscribe(ns, id) }
}

// Unsubscribe removes the subscription id from ns. It reports whether the
// subscription was registered.
//
// Once Unsubscribe returns, the listener is never invoked again, including by
// a notification pass that is already in progress.
func (r *Registry[S]) Unsubscribe(ns string, id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs := r.subscribers[ns]
	for i, sub := range subs {
		if sub.id != id {
			continue
		}
		sub.active.Store(false)

		// Build a fresh slice so snapshots held by in-flight passes keep their order.
		remaining := make([]*subscription[S], 0, len(subs)-1)
		remaining = append(remaining, subs[:i]...)
		remaining = append(remaining, subs[i+1:]...)
		if len(remaining) == 0 {
			delete(r.subscribers, ns)
		} else {
			r.subscribers[ns] = remaining
		}
		return true
	}
	return false
}

// SubscriberIDs returns the subscription ids of ns in registration order.
func (r *Registry[S]) SubscriberIDs(ns string) []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs := r.subscribers[ns]
	ids := make([]uint64, len(subs))
	for i, sub := range subs {
		ids[i] = sub.id
	}
	return ids
}

// HasSubscribers reports whether ns has at least one registered listener.
func (r *Registry[S]) HasSubscribers(ns string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.subscribers[ns]) > 0
}

// Notify invokes every listener of ns in registration order and returns how
// many were invoked.
//
// The pass works on a snapshot taken at call time: listeners registered during
// the pass are not invoked, and unregistering one listener never reorders or
// skips the others. A listener unregistered before its turn is skipped.
func (r *Registry[S]) Notify(ns string, ev ir.Event, state S) int {
	r.mu.Lock()
	snapshot := r.subscribers[ns]
	r.mu.Unlock()

	invoked := 0
	for _, sub := range snapshot {
		if !sub.active.Load() {
			continue
		}
		sub.fn(ev, state)
		invoked++
	}
	return invoked
}

// Task returns the running task handle of ns.
func (r *Registry[S]) Task(ns string) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.tasks[ns]
	return h, ok
}

// SetTask records h as the running task of ns.
// Returns ErrTaskExists if ns already has a handle; the existing one is kept.
func (r *Registry[S]) SetTask(ns string, h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tasks[ns]; exists {
		return ErrTaskExists
	}
	r.tasks[ns] = h
	return nil
}

// DeleteTask removes and returns the task handle of ns.
// State and subscribers of ns are left untouched.
func (r *Registry[S]) DeleteTask(ns string) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.tasks[ns]
	delete(r.tasks, ns)
	return h, ok
}

// TaskCount returns the number of namespaces with a running task.
// Used for testing and metrics.
func (r *Registry[S]) TaskCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.tasks)
}

// Namespaces returns every namespace with stored state, subscribers or a
// task, sorted for deterministic output.
func (r *Registry[S]) Namespaces() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{}, len(r.states)+len(r.tasks))
	for ns := range r.states {
		seen[ns] = struct{}{}
	}
	for ns := range r.subscribers {
		seen[ns] = struct{}{}
	}
	for ns := range r.tasks {
		seen[ns] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for ns := range seen {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}
