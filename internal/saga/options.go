package saga

import (
	"log/slog"

	"github.com/roach88/nsaga/internal/matcher"
	"github.com/roach88/nsaga/internal/task"
)

// Hooks observes task lifecycle transitions and publishes.
// Implemented by metrics.Metrics.
type Hooks interface {
	TaskStarted(namespace string)
	TaskStopped(namespace string)
	Notified(namespace string, subscribers int)
}

type nopHooks struct{}

func (nopHooks) TaskStarted(string)   {}
func (nopHooks) TaskStopped(string)   {}
func (nopHooks) Notified(string, int) {}

// Option configures a Controller.
type Option[S any] func(*Controller[S])

// WithSaga sets the runner used to start a namespace's task on mount.
// Without it the controller is a pure reducer.
func WithSaga[S any](runner task.Runner[S]) Option[S] {
	return func(c *Controller[S]) {
		c.runner = runner
	}
}

// WithPredicateFactory sets the default pattern compiler for RegisterCase.
// Default: matcher.DefaultPredicate.
func WithPredicateFactory[S any](factory matcher.PredicateFactory) Option[S] {
	return func(c *Controller[S]) {
		c.factory = factory
	}
}

// WithLogger sets the controller's logger. Default: slog.Default().
func WithLogger[S any](logger *slog.Logger) Option[S] {
	return func(c *Controller[S]) {
		c.logger = logger
	}
}

// WithHooks registers h to observe lifecycle transitions.
func WithHooks[S any](h Hooks) Option[S] {
	return func(c *Controller[S]) {
		c.hooks = h
	}
}
