package matcher

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/nsaga/internal/ir"
)

// ErrInvalidPattern is returned for patterns DefaultPredicate cannot compile.
var ErrInvalidPattern = errors.New("matcher: invalid pattern")

// wildcard is the pattern segment that matches the rest of a label.
const wildcard = "*"

// Match describes an accepted event.
type Match struct {
	// Unwrap is the label handed to the reducer.
	Unwrap string

	// Wrap is the label fragment consumed by this match.
	Wrap string

	// Arg is the payload handed to the reducer when HasArg is set.
	Arg    any
	HasArg bool
}

// Predicate accepts or rejects an event.
type Predicate func(ev ir.Event) (Match, bool)

// Reducer folds an event into the accumulator and returns the new accumulator.
// It must not mutate acc.
type Reducer[S any] func(acc S, ev ir.Event) S

// PredicateFactory compiles a pattern into a Predicate.
type PredicateFactory func(pattern string) (Predicate, error)

// Case is one entry of a Chain.
type Case[S any] struct {
	Pattern   string
	Predicate Predicate
	Reduce    Reducer[S]
}

// Chain is an ordered list of cases. The zero value is an empty chain.
//
// Chains are built before use and read concurrently afterwards; Add is not
// safe to call while Reduce is running.
type Chain[S any] struct {
	cases []Case[S]
}

// Add appends a case. Cases are evaluated in the order they were added.
func (c *Chain[S]) Add(pattern string, pred Predicate, reduce Reducer[S]) {
	c.cases = append(c.cases, Case[S]{Pattern: pattern, Predicate: pred, Reduce: reduce})
}

// Len returns the number of cases.
func (c *Chain[S]) Len() int {
	return len(c.cases)
}

// Patterns returns the case patterns in evaluation order.
func (c *Chain[S]) Patterns() []string {
	out := make([]string, len(c.cases))
	for i, cs := range c.cases {
		out[i] = cs.Pattern
	}
	return out
}

// Reduce runs every accepting case against acc in order and returns the final
// accumulator. When no case accepts, acc is returned unchanged.
func (c *Chain[S]) Reduce(acc S, ev ir.Event) S {
	for _, cs := range c.cases {
		m, ok := cs.Predicate(ev)
		if !ok {
			continue
		}
		acc = cs.Reduce(acc, synthesize(ev, m))
	}
	return acc
}

// synthesize builds the event handed to a reducer for match m.
func synthesize(ev ir.Event, m Match) ir.Event {
	out := ir.Event{
		Type:      m.Unwrap,
		Namespace: ev.Namespace,
		Wrap:      ev.Wrap + m.Wrap,
		Exec:      ev.Exec,
	}
	if m.HasArg {
		out.Arg = m.Arg
	}
	return out
}

// DefaultPredicate compiles pattern into a predicate over the event type.
//
// Accepted forms are an exact label ("Inc", "Child.Inc"), a prefix followed by
// a wildcard segment ("Child.*") and the lone wildcard ("*"). Empty patterns,
// empty segments and a wildcard anywhere but the last segment are rejected.
func DefaultPredicate(pattern string) (Predicate, error) {
	if err := validate(pattern); err != nil {
		return nil, err
	}

	if pattern == wildcard {
		return func(ev ir.Event) (Match, bool) {
			return Match{Unwrap: ev.Type, Arg: ev.Arg, HasArg: ev.Arg != nil}, true
		}, nil
	}

	if prefix, ok := strings.CutSuffix(pattern, ir.Separator+wildcard); ok {
		wrap := prefix + ir.Separator
		return func(ev ir.Event) (Match, bool) {
			rest, ok := strings.CutPrefix(ev.Type, wrap)
			if !ok || rest == "" {
				return Match{}, false
			}
			return Match{Unwrap: rest, Wrap: wrap, Arg: ev.Arg, HasArg: ev.Arg != nil}, true
		}, nil
	}

	return func(ev ir.Event) (Match, bool) {
		if ev.Type != pattern {
			return Match{}, false
		}
		return Match{Unwrap: ev.Type, Arg: ev.Arg, HasArg: ev.Arg != nil}, true
	}, nil
}

func validate(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("%w: empty pattern", ErrInvalidPattern)
	}
	segments := strings.Split(pattern, ir.Separator)
	for i, seg := range segments {
		switch {
		case seg == "":
			return fmt.Errorf("%w: %q has an empty segment", ErrInvalidPattern, pattern)
		case seg == wildcard && i != len(segments)-1:
			return fmt.Errorf("%w: %q has a wildcard before the last segment", ErrInvalidPattern, pattern)
		case seg != wildcard && strings.Contains(seg, wildcard):
			return fmt.Errorf("%w: %q mixes a wildcard into segment %q", ErrInvalidPattern, pattern, seg)
		}
	}
	return nil
}
