package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/nsaga/internal/compiler"
	"github.com/roach88/nsaga/internal/engine"
	"github.com/roach88/nsaga/internal/ir"
	"github.com/roach88/nsaga/internal/registry"
	"github.com/roach88/nsaga/internal/saga"
	"github.com/roach88/nsaga/internal/task"
	"github.com/roach88/nsaga/internal/testutil"
)

// Option configures a scenario run.
type Option func(*config)

type config struct {
	logger    *slog.Logger
	observers []engine.Observer
	hooks     saga.Hooks
	clock     *engine.Clock
}

// WithLogger sets the logger handed to the engine, controller and runner.
// Runs are silent by default.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithObserver adds an engine observer, for example a store journal.
func WithObserver(o engine.Observer) Option {
	return func(c *config) {
		c.observers = append(c.observers, o)
	}
}

// WithHooks sets the controller's lifecycle hooks.
func WithHooks(h saga.Hooks) Option {
	return func(c *config) {
		c.hooks = h
	}
}

// WithClock sets the engine's sequence clock, e.g. to continue the numbering
// of an existing journal.
func WithClock(clock *engine.Clock) Option {
	return func(c *config) {
		c.clock = clock
	}
}

// LoadSpec compiles and validates the spec a scenario names.
func LoadSpec(s *Scenario) (*compiler.Spec, error) {
	var (
		spec *compiler.Spec
		err  error
	)
	if s.Source != "" {
		spec, err = compiler.CompileBytes(s.Name+".cue", []byte(s.Source))
	} else {
		spec, err = compiler.CompileFile(s.Spec)
	}
	if err != nil {
		return nil, fmt.Errorf("compile spec: %w", err)
	}

	var errs []error
	for _, verr := range compiler.Validate(spec) {
		errs = append(errs, verr)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid spec: %w", errors.Join(errs...))
	}
	return spec, nil
}

// Run executes a scenario and returns the result.
//
// Each run builds a fresh registry, controller and engine. Task ids come from
// a sequential generator and turns are numbered from 1, so traces are stable
// across runs. The engine is drained after every step; tasks of compiled specs
// only act from inside engine turns, so draining leaves nothing in flight.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := config{logger: testutil.DiscardLogger()}
	for _, opt := range opts {
		opt(&cfg)
	}

	spec, err := LoadSpec(scenario)
	if err != nil {
		return nil, err
	}

	initial, err := normalizeMap(scenario.Model)
	if err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	reg := registry.New[ir.Model]()
	ctrlOpts := []saga.Option[ir.Model]{saga.WithLogger[ir.Model](cfg.logger)}
	if cfg.hooks != nil {
		ctrlOpts = append(ctrlOpts, saga.WithHooks[ir.Model](cfg.hooks))
	}
	if spec.Saga != nil {
		runner := task.NewGoRunner(spec.Saga.Saga(cfg.logger),
			task.WithIDGenerator[ir.Model](testutil.NewSequentialIDs("task")),
			task.WithBaseContext[ir.Model](runCtx),
			task.WithLogger[ir.Model](cfg.logger),
		)
		ctrlOpts = append(ctrlOpts, saga.WithSaga[ir.Model](runner))
	}

	ctrl := saga.New(reg, ctrlOpts...)
	if err := compiler.Register(ctrl, spec); err != nil {
		return nil, err
	}

	recorder := &traceRecorder{}
	engOpts := []engine.Option[ir.Model]{
		engine.WithLogger[ir.Model](cfg.logger),
		engine.WithObserver[ir.Model](recorder),
	}
	for _, o := range cfg.observers {
		engOpts = append(engOpts, engine.WithObserver[ir.Model](o))
	}
	if cfg.clock != nil {
		engOpts = append(engOpts, engine.WithClock[ir.Model](cfg.clock))
	}
	eng := engine.New(ctrl.ToReducer(), ir.Model(initial), engOpts...)
	defer eng.Stop()

	notified := newNotifyCounter()
	for _, a := range scenario.Assertions {
		if a.Type == AssertNotified {
			defer notified.listen(ctrl, a.Namespace)()
		}
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		ev, err := step.event()
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		if err := eng.Enqueue(ev); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		if err := eng.Drain(runCtx); err != nil {
			if ctxErr := runCtx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("step %d: %w", i, ctxErr)
			}
			result.AddError(fmt.Sprintf("step %d: %v", i, err))
		}
	}

	result.Trace = recorder.trace()
	result.Model = eng.State()

	actx := &AssertionContext{
		Trace:    result.Trace,
		Model:    result.Model,
		State:    reg.State,
		Running:  ctrl.Running,
		Notified: notified.snapshot(),
	}
	for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// notifyCounter counts listener calls per namespace.
type notifyCounter struct {
	mu     sync.Mutex
	counts map[string]int
	seen   map[string]bool
}

func newNotifyCounter() *notifyCounter {
	return &notifyCounter{counts: map[string]int{}, seen: map[string]bool{}}
}

// listen subscribes to ns once and returns the unsubscribe function.
func (n *notifyCounter) listen(ctrl *saga.Controller[ir.Model], ns string) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.seen[ns] {
		return func() {}
	}
	n.seen[ns] = true

	return ctrl.Subscribe(ns, func(ir.Event, ir.Model) {
		n.mu.Lock()
		defer n.mu.Unlock()
		n.counts[ns]++
	})
}

func (n *notifyCounter) snapshot() map[string]int {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[string]int, len(n.counts))
	for k, v := range n.counts {
		out[k] = v
	}
	return out
}
