package saga

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/nsaga/internal/ir"
	"github.com/roach88/nsaga/internal/matcher"
	"github.com/roach88/nsaga/internal/registry"
	"github.com/roach88/nsaga/internal/task"
)

// Controller combines a matcher chain with per-namespace task lifecycle.
//
// Thread-safety: RegisterCase must complete before ToReducer's function is
// first called. The reducer and the effects it schedules are expected to run on
// the host's single dispatch goroutine; Subscribe and Running are safe from any
// goroutine.
type Controller[S any] struct {
	reg     *registry.Registry[S]
	runner  task.Runner[S]
	factory matcher.PredicateFactory
	logger  *slog.Logger
	hooks   Hooks

	chain matcher.Chain[S]
	errs  []error

	mu        sync.Mutex
	pending   map[string]uint64 // namespace -> token of the scheduled start
	nextMount uint64
}

// New creates a controller over reg.
func New[S any](reg *registry.Registry[S], opts ...Option[S]) *Controller[S] {
	c := &Controller[S]{
		reg:     reg,
		factory: matcher.DefaultPredicate,
		logger:  slog.Default(),
		hooks:   nopHooks{},
		pending: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegisterCase appends a case to the matcher chain and returns c for chaining.
//
// The pattern is compiled by factory when given, otherwise by the controller's
// predicate factory. A pattern that fails to compile is skipped and its error
// is reported by Err.
func (c *Controller[S]) RegisterCase(pattern string, reduce matcher.Reducer[S], factory ...matcher.PredicateFactory) *Controller[S] {
	compile := c.factory
	if len(factory) > 0 && factory[0] != nil {
		compile = factory[0]
	}

	pred, err := compile(pattern)
	if err != nil {
		c.errs = append(c.errs, fmt.Errorf("register case %q: %w", pattern, err))
		return c
	}
	c.chain.Add(pattern, pred, reduce)
	return c
}

// MustRegisterCase is like RegisterCase but panics if the pattern is invalid.
func (c *Controller[S]) MustRegisterCase(pattern string, reduce matcher.Reducer[S], factory ...matcher.PredicateFactory) *Controller[S] {
	before := len(c.errs)
	c.RegisterCase(pattern, reduce, factory...)
	if len(c.errs) > before {
		panic(c.errs[len(c.errs)-1])
	}
	return c
}

// Err returns the joined errors of every rejected RegisterCase call.
func (c *Controller[S]) Err() error {
	return errors.Join(c.errs...)
}

// Cases returns the number of registered cases.
func (c *Controller[S]) Cases() int {
	return c.chain.Len()
}

// Subscribe registers fn for namespace publishes from outside any task.
// The returned function unregisters it.
func (c *Controller[S]) Subscribe(namespace string, fn registry.Listener[S]) func() {
	_, unsubscribe := c.reg.Subscribe(namespace, fn)
	return unsubscribe
}

// Running reports whether namespace has a task handle.
func (c *Controller[S]) Running(namespace string) bool {
	_, ok := c.reg.Task(namespace)
	return ok
}

// ToReducer returns the controller as a reducer for the host loop.
func (c *Controller[S]) ToReducer() func(S, *ir.Event) S {
	return c.reduce
}

func (c *Controller[S]) reduce(acc S, ev *ir.Event) S {
	if ev == nil {
		return acc
	}

	switch ev.Type {
	case ir.Mount:
		if c.mount(acc, ev) {
			return acc
		}
	case ir.Unmount:
		if c.unmount(ev) {
			return acc
		}
	}

	next := c.chain.Reduce(acc, *ev)
	if c.runner != nil && ev.Exec != nil {
		ev.Exec(c.publishEffect(*ev, next))
	}
	return next
}

// mount schedules a task start for ev's namespace. It returns false when the
// event does not start anything and should be reduced as an ordinary event.
func (c *Controller[S]) mount(acc S, ev *ir.Event) bool {
	if c.runner == nil || ev.Exec == nil {
		return false
	}
	ns := ev.Namespace

	c.mu.Lock()
	_, pending := c.pending[ns]
	_, running := c.reg.Task(ns)
	if pending || running {
		c.mu.Unlock()
		c.logger.Debug("mount ignored",
			"namespace", ns,
			"running", running,
			"pending", pending,
		)
		return false
	}
	c.nextMount++
	token := c.nextMount
	c.pending[ns] = token
	c.mu.Unlock()

	ev.Exec(c.startEffect(ns, token, acc))
	return true
}

// unmount cancels ev's namespace task, or withdraws its scheduled start.
// It returns false when there is nothing to stop.
func (c *Controller[S]) unmount(ev *ir.Event) bool {
	if c.runner == nil || ev.Exec == nil {
		return false
	}
	ns := ev.Namespace

	c.mu.Lock()
	if _, ok := c.pending[ns]; ok {
		delete(c.pending, ns)
		c.mu.Unlock()
		c.logger.Debug("pending mount withdrawn", "namespace", ns)
		return true
	}
	c.mu.Unlock()

	h, ok := c.reg.Task(ns)
	if !ok {
		return false
	}
	c.stop(ns, h)
	return true
}

// stop cancels h unless already cancelled and removes it from the registry.
func (c *Controller[S]) stop(ns string, h registry.Handle) {
	if !h.Cancelled() {
		h.Cancel()
	}
	c.reg.DeleteTask(ns)
	c.hooks.TaskStopped(ns)

	c.logger.Info("task stopped",
		"namespace", ns,
		"task_id", h.ID(),
	)
}

func (c *Controller[S]) startEffect(ns string, token uint64, acc S) ir.Effect {
	return func(dispatch ir.Dispatch) error {
		c.mu.Lock()
		current, ok := c.pending[ns]
		if !ok || current != token {
			c.mu.Unlock()
			return nil
		}
		delete(c.pending, ns)
		c.mu.Unlock()

		if _, running := c.reg.Task(ns); running {
			return nil
		}

		c.reg.SetState(ns, acc)

		h, err := c.runner.Start(task.Scope[S]{
			Namespace: ns,
			Dispatch:  dispatch,
			Registry:  c.reg,
		})
		if err != nil {
			return &StartError{Namespace: ns, Err: err}
		}

		if err := c.reg.SetTask(ns, h); err != nil {
			h.Cancel()
			return fmt.Errorf("record task for %q: %w", ns, err)
		}
		c.hooks.TaskStarted(ns)

		c.logger.Info("task mounted",
			"namespace", ns,
			"task_id", h.ID(),
		)
		return nil
	}
}

func (c *Controller[S]) publishEffect(ev ir.Event, next S) ir.Effect {
	ns := ev.Namespace
	ev.Exec = nil
	return func(ir.Dispatch) error {
		if _, running := c.reg.Task(ns); !running {
			return nil
		}
		c.reg.SetState(ns, next)

		if !c.reg.HasSubscribers(ns) {
			return nil
		}
		n := c.reg.Notify(ns, ev, next)
		c.hooks.Notified(ns, n)
		return nil
	}
}
