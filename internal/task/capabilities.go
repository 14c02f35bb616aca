package task

import (
	"github.com/roach88/nsaga/internal/ir"
	"github.com/roach88/nsaga/internal/registry"
)

// Capabilities is the only way a running task reaches the outside world.
// Every method fails with ErrCancelled once the task's handle is cancelled.
type Capabilities[S any] struct {
	scope  Scope[S]
	handle *handle
}

// Namespace returns the namespace the task is bound to.
func (c *Capabilities[S]) Namespace() string {
	return c.scope.Namespace
}

// Emit re-injects ev into the outer event stream with its type prefixed by the
// task's namespace and its Namespace set to it. Any Exec handle on ev is
// dropped; the host attaches its own.
func (c *Capabilities[S]) Emit(ev ir.Event) error {
	c.handle.mu.RLock()
	defer c.handle.mu.RUnlock()

	if c.handle.cancelled {
		return ErrCancelled
	}

	out := ev.Scoped(c.scope.Namespace)
	out.Namespace = c.scope.Namespace
	out.Exec = nil
	c.scope.Dispatch(out)
	return nil
}

// State returns the namespace's most recently published state. Before the
// first publish this is the state stored when the task was mounted.
func (c *Capabilities[S]) State() (S, error) {
	c.handle.mu.RLock()
	defer c.handle.mu.RUnlock()

	if c.handle.cancelled {
		var zero S
		return zero, ErrCancelled
	}

	s, _ := c.scope.Registry.State(c.scope.Namespace)
	return s, nil
}

// Subscribe registers fn for the namespace's publishes and returns the
// function that unregisters it. Cancelling the task unregisters fn; a
// notification pass already under way skips it.
func (c *Capabilities[S]) Subscribe(fn registry.Listener[S]) (func(), error) {
	h := c.handle
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancelled {
		return nil, ErrCancelled
	}

	_, unsubscribe := c.scope.Registry.Subscribe(c.scope.Namespace, func(ev ir.Event, s S) {
		if h.Cancelled() {
			return
		}
		fn(ev, s)
	})
	h.unsubs = append(h.unsubs, unsubscribe)
	return unsubscribe, nil
}
