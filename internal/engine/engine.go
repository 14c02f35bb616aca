package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/nsaga/internal/ir"
)

// ErrStopped is returned by Enqueue after Stop.
var ErrStopped = errors.New("engine: stopped")

// Reducer computes the next accumulator from the current one and an event.
// saga.Controller.ToReducer returns one.
type Reducer[S any] func(acc S, ev *ir.Event) S

// Observer is told about every processed event and every failed effect.
// Implemented by store.Journal and metrics.Metrics.
//
// Observers run on the loop goroutine and must not call back into the engine
// except through Dispatch.
type Observer interface {
	Processed(seq int64, ev ir.Event)
	Failed(seq int64, ev ir.Event, err error)
}

// Engine is the single-writer loop that owns the accumulator.
type Engine[S any] struct {
	reducer   Reducer[S]
	clock     *Clock
	inbox     *inbox
	logger    *slog.Logger
	observers []Observer

	stateMu sync.RWMutex
	state   S

	effectsMu sync.Mutex
	effects   []ir.Effect
}

// Option configures an Engine.
type Option[S any] func(*Engine[S])

// WithLogger sets the engine's logger. Default: slog.Default().
func WithLogger[S any](logger *slog.Logger) Option[S] {
	return func(e *Engine[S]) {
		e.logger = logger
	}
}

// WithObserver adds an observer. Observers are called in the order added.
func WithObserver[S any](o Observer) Option[S] {
	return func(e *Engine[S]) {
		e.observers = append(e.observers, o)
	}
}

// WithClock sets the sequence clock, e.g. NewClockAt to continue a journal.
func WithClock[S any](clock *Clock) Option[S] {
	return func(e *Engine[S]) {
		e.clock = clock
	}
}

// New creates an engine that folds events into initial with reducer.
func New[S any](reducer Reducer[S], initial S, opts ...Option[S]) *Engine[S] {
	e := &Engine[S]{
		reducer: reducer,
		clock:   NewClock(),
		inbox:   newInbox(),
		logger:  slog.Default(),
		state:   initial,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enqueue submits ev for processing. Any Exec on ev is replaced by the
// engine's own. Thread-safe.
func (e *Engine[S]) Enqueue(ev ir.Event) error {
	ev.Exec = nil
	if !e.inbox.push(ev) {
		return ErrStopped
	}
	return nil
}

// Dispatch is Enqueue with the ir.Dispatch signature. Events dispatched after
// Stop are dropped and logged.
func (e *Engine[S]) Dispatch(ev ir.Event) {
	if err := e.Enqueue(ev); err != nil {
		e.logger.Debug("event dropped",
			"type", ev.Type,
			"namespace", ev.Namespace,
			"error", err,
		)
	}
}

// State returns the current accumulator. Thread-safe.
func (e *Engine[S]) State() S {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.state
}

// QueueLen returns the number of events waiting to be processed.
func (e *Engine[S]) QueueLen() int {
	return e.inbox.len()
}

// Clock returns the engine's sequence clock.
func (e *Engine[S]) Clock() *Clock {
	return e.clock
}

// Stop closes the queue. Run returns once the queued events are processed.
func (e *Engine[S]) Stop() {
	e.inbox.close()
}

// Step processes one event if one is queued. It reports whether an event was
// processed and returns the errors of that turn's effects.
func (e *Engine[S]) Step(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	ev, ok := e.inbox.pop()
	if !ok {
		return false, nil
	}
	return true, e.process(ev)
}

// Drain processes events until the queue is empty or ctx is done. Effect
// errors do not stop the drain; they are joined and returned.
func (e *Engine[S]) Drain(ctx context.Context) error {
	var errs []error
	for {
		ok, err := e.Step(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return errors.Join(append(errs, err)...)
			}
			errs = append(errs, err)
		}
		if !ok {
			return errors.Join(errs...)
		}
	}
}

// Run processes events until ctx is cancelled or Stop is called.
//
// Must be called from exactly one goroutine. Effect failures are logged and
// processing continues.
func (e *Engine[S]) Run(ctx context.Context) error {
	e.logger.Info("engine starting")

	for {
		ok, err := e.Step(ctx)
		if err != nil && ctx.Err() == nil {
			e.logger.Error("event processing failed",
				"seq", e.clock.Current(),
				"error", err,
			)
		}
		if ok {
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			e.inbox.close()
			return ctx.Err()

		case <-e.inbox.ready():
			// The signal channel is closed by Stop; leftover events are
			// still processed before returning.
			if e.inbox.closed() && e.inbox.len() == 0 {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// process runs one turn: reduce, then the effects scheduled for it.
func (e *Engine[S]) process(ev ir.Event) error {
	seq := e.clock.Next()
	ev.Exec = e.schedule

	e.stateMu.Lock()
	e.state = e.reducer(e.state, &ev)
	e.stateMu.Unlock()

	ev.Exec = nil
	e.logger.Debug("event processed",
		"seq", seq,
		"type", ev.Type,
		"namespace", ev.Namespace,
	)
	for _, o := range e.observers {
		o.Processed(seq, ev)
	}

	var errs []error
	for _, effect := range e.takeEffects() {
		if err := effect(e.Dispatch); err != nil {
			wrapped := fmt.Errorf("effect for event %d (%s): %w", seq, ev.Type, err)
			errs = append(errs, wrapped)

			e.logger.Warn("effect failed",
				"seq", seq,
				"type", ev.Type,
				"namespace", ev.Namespace,
				"error", err,
			)
			for _, o := range e.observers {
				o.Failed(seq, ev, err)
			}
		}
	}
	return errors.Join(errs...)
}

// schedule is the Exec handle attached to every event.
func (e *Engine[S]) schedule(effect ir.Effect) {
	e.effectsMu.Lock()
	defer e.effectsMu.Unlock()
	e.effects = append(e.effects, effect)
}

func (e *Engine[S]) takeEffects() []ir.Effect {
	e.effectsMu.Lock()
	defer e.effectsMu.Unlock()
	out := e.effects
	e.effects = nil
	return out
}
