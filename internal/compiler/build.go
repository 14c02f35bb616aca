package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/nsaga/internal/ir"
	"github.com/roach88/nsaga/internal/matcher"
	"github.com/roach88/nsaga/internal/registry"
	"github.com/roach88/nsaga/internal/saga"
	"github.com/roach88/nsaga/internal/task"
)

// Register adds every reducer case of spec to c in declaration order.
//
// A scoped reducer is registered as a single "<scope>.*" case whose reducer is
// a nested chain of the reducer's own cases.
func Register(c *saga.Controller[ir.Model], spec *Spec) error {
	for _, r := range spec.Reducers {
		if r.Scope == "" {
			for _, cs := range r.Cases {
				c.RegisterCase(cs.Match, cs.Reducer())
			}
			continue
		}

		var inner matcher.Chain[ir.Model]
		for i, cs := range r.Cases {
			pred, err := matcher.DefaultPredicate(cs.Match)
			if err != nil {
				return fmt.Errorf("reducer %s case %d: %w", r.Name, i, err)
			}
			inner.Add(cs.Match, pred, cs.Reducer())
		}
		c.RegisterCase(r.Scope+ir.Separator+"*", inner.Reduce)
	}

	if err := c.Err(); err != nil {
		return fmt.Errorf("register spec: %w", err)
	}
	return nil
}

// Reducer returns the matcher reducer implementing the case's op.
// Validate should have accepted the case; an unknown op leaves the model
// unchanged.
func (cs CaseSpec) Reducer() matcher.Reducer[ir.Model] {
	field := cs.Field
	switch cs.Op {
	case OpAdd:
		by := cs.By
		return func(acc ir.Model, _ ir.Event) ir.Model {
			return acc.With(field, acc.Int(field)+by)
		}

	case OpSet:
		return func(acc ir.Model, ev ir.Event) ir.Model {
			value := ev.Arg
			if cs.HasValue {
				value = cs.Value
			}
			if value == nil {
				return acc.Without(field)
			}
			return acc.With(field, value)
		}

	case OpAppend:
		return func(acc ir.Model, ev ir.Event) ir.Model {
			var item any = ev.Type
			if cs.HasValue {
				item = cs.Value
			}
			prev := acc.List(field)
			list := make([]any, len(prev), len(prev)+1)
			copy(list, prev)
			return acc.With(field, append(list, item))
		}

	case OpReset:
		return func(acc ir.Model, _ ir.Event) ir.Model {
			if field == "" {
				return ir.Model{}
			}
			return acc.Without(field)
		}

	default:
		return func(acc ir.Model, _ ir.Event) ir.Model { return acc }
	}
}

// Saga returns the task definition described by s.
//
// The task emits every start event while it is being mounted, then reacts to
// the namespace's publishes. The notified type has the namespace prefix
// removed before it is looked up, and the emitted event carries the
// notification's argument. The task has no body of its own. Reactions that
// cannot be emitted are logged to logger, or slog.Default() when nil.
func (s *SagaSpec) Saga(logger *slog.Logger) task.Saga[ir.Model] {
	if logger == nil {
		logger = slog.Default()
	}
	react := make(map[string]string, len(s.React))
	for _, r := range s.React {
		react[r.On] = r.Emit
	}
	start := append([]string(nil), s.Start...)

	return func(caps *task.Capabilities[ir.Model]) (task.Body, error) {
		ns := caps.Namespace()

		for _, typ := range start {
			if err := caps.Emit(ir.Event{Type: typ}); err != nil {
				return nil, fmt.Errorf("emit start event %q: %w", typ, err)
			}
		}

		if len(react) == 0 {
			return nil, nil
		}

		var listener registry.Listener[ir.Model] = func(ev ir.Event, _ ir.Model) {
			typ, ok := ir.Unscope(ns, ev.Type)
			if !ok {
				typ = ev.Type
			}
			emit, ok := react[typ]
			if !ok {
				return
			}
			emitReaction(logger, caps, typ, emit, ev.Arg)
		}
		if _, err := caps.Subscribe(listener); err != nil {
			return nil, fmt.Errorf("subscribe: %w", err)
		}
		return nil, nil
	}
}

// emitReaction emits the reaction to a notification of type on. A task
// cancelled mid-notification refuses the emit; that is logged at debug level,
// anything else as a warning.
func emitReaction(logger *slog.Logger, caps *task.Capabilities[ir.Model], on, emit string, arg any) {
	err := caps.Emit(ir.Event{Type: emit, Arg: arg})
	if err == nil {
		return
	}
	level := slog.LevelWarn
	if errors.Is(err, task.ErrCancelled) {
		level = slog.LevelDebug
	}
	logger.Log(context.Background(), level, "reaction not emitted",
		"namespace", caps.Namespace(),
		"on", on,
		"emit", emit,
		"error", err,
	)
}
