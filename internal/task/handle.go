package task

import (
	"context"
	"sync"
)

// handle is the Handle returned by GoRunner.
type handle struct {
	id        string
	namespace string

	mu        sync.RWMutex
	cancelled bool
	cancel    context.CancelFunc
	err       error
	unsubs    []func() // registry subscriptions made through Capabilities

	done chan struct{}
}

func newHandle(id, namespace string, cancel context.CancelFunc) *handle {
	return &handle{
		id:        id,
		namespace: namespace,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

func (h *handle) ID() string { return h.id }

// Cancel moves the handle to the cancelled state. Only the first call removes
// the task's subscriptions and reaches the context's cancel function.
func (h *handle) Cancel() {
	h.mu.Lock()
	if h.cancelled {
		h.mu.Unlock()
		return
	}
	h.cancelled = true
	unsubs := h.unsubs
	h.unsubs = nil
	h.mu.Unlock()

	for _, unsubscribe := range unsubs {
		unsubscribe()
	}
	h.cancel()
}

func (h *handle) Cancelled() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cancelled
}

func (h *handle) Done() <-chan struct{} { return h.done }

func (h *handle) Err() error {
	select {
	case <-h.done:
	default:
		return nil
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

// finish records the body's result and closes done.
func (h *handle) finish(err error) {
	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
	close(h.done)
}
