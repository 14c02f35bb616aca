package store

import (
	"context"
	"fmt"
	"strings"
)

// Predicate is a filter over journaled events.
//
// This is a sealed interface: only Equals, And and HasFailure implement it,
// so compilePredicate can switch exhaustively.
type Predicate interface {
	predicateNode()
}

// Column names an events column a predicate may compare.
type Column string

const (
	ColumnNamespace Column = "namespace"
	ColumnType      Column = "type"
	ColumnWrap      Column = "wrap"
	ColumnID        Column = "id"
)

// Equals matches events whose Column holds Value.
type Equals struct {
	Column Column
	Value  string
}

func (Equals) predicateNode() {}

// And matches events satisfying every predicate. An empty And matches all.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// HasFailure matches events with at least one failed effect.
type HasFailure struct{}

func (HasFailure) predicateNode() {}

// Query returns the events matching p ordered by seq. A nil p matches every
// event. Values are always bound as parameters.
func (s *Store) Query(ctx context.Context, p Predicate) ([]Record, error) {
	where, params, err := compilePredicate(p)
	if err != nil {
		return nil, fmt.Errorf("compile query: %w", err)
	}
	return s.readEvents(ctx, `
		SELECT seq, id, namespace, type, wrap, arg
		FROM events
		WHERE `+where+`
		ORDER BY seq ASC
	`, params...)
}

func compilePredicate(p Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case Equals:
		return compileEquals(pred)
	case *Equals:
		return compileEquals(*pred)
	case And:
		return compileAnd(pred)
	case *And:
		return compileAnd(*pred)
	case HasFailure, *HasFailure:
		return "EXISTS (SELECT 1 FROM failures f WHERE f.seq = events.seq)", nil, nil
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compileEquals(eq Equals) (string, []any, error) {
	switch eq.Column {
	case ColumnNamespace, ColumnType, ColumnWrap, ColumnID:
	default:
		return "", nil, fmt.Errorf("unknown column %q", eq.Column)
	}
	return string(eq.Column) + " = ?", []any{eq.Value}, nil
}

func compileAnd(and And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}

	parts := make([]string, 0, len(and.Predicates))
	var params []any
	for _, pred := range and.Predicates {
		sql, args, err := compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+sql+")")
		params = append(params, args...)
	}
	return strings.Join(parts, " AND "), params, nil
}
