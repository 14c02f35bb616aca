package task

import (
	"context"
	"errors"

	"github.com/roach88/nsaga/internal/ir"
	"github.com/roach88/nsaga/internal/registry"
)

// ErrCancelled is returned by capabilities used after the task was cancelled.
var ErrCancelled = errors.New("task: cancelled")

// Handle is a cancellable reference to a running task.
type Handle interface {
	registry.Handle

	// Done is closed when the task body has returned.
	Done() <-chan struct{}

	// Err returns the body's error once Done is closed, nil before.
	Err() error
}

// Body is the long-running part of a saga. It should return when ctx is done.
type Body func(ctx context.Context) error

// Saga is a task definition. It runs synchronously inside Runner.Start with the
// task's capabilities and returns the body to run concurrently. A nil body is a
// task that only reacts through subscriptions.
type Saga[S any] func(caps *Capabilities[S]) (Body, error)

// Scope is everything a runner needs to start a task for one namespace.
type Scope[S any] struct {
	Namespace string
	Dispatch  ir.Dispatch
	Registry  *registry.Registry[S]
}

// Runner starts tasks. Implementations decide how the task executes.
type Runner[S any] interface {
	Start(scope Scope[S]) (Handle, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc[S any] func(scope Scope[S]) (Handle, error)

// Start calls f(scope).
func (f RunnerFunc[S]) Start(scope Scope[S]) (Handle, error) {
	return f(scope)
}
