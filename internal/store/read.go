package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/nsaga/internal/ir"
)

// Record is one journaled event.
type Record struct {
	Seq       int64
	ID        string
	Namespace string
	Type      string
	Wrap      string
	Arg       any

	// Failures holds the messages of failed effects, in insertion order.
	Failures []string
}

// Event rebuilds the journaled event. Exec is always nil.
func (r Record) Event() ir.Event {
	return ir.Event{Type: r.Type, Namespace: r.Namespace, Wrap: r.Wrap, Arg: r.Arg}
}

// ReadAll returns every journaled event ordered by seq.
// Returns an empty slice (not nil) for an empty journal.
func (s *Store) ReadAll(ctx context.Context) ([]Record, error) {
	return s.readEvents(ctx, `
		SELECT seq, id, namespace, type, wrap, arg
		FROM events
		ORDER BY seq ASC
	`)
}

// ReadNamespace returns the events of one namespace ordered by seq.
func (s *Store) ReadNamespace(ctx context.Context, namespace string) ([]Record, error) {
	return s.Query(ctx, Equals{Column: ColumnNamespace, Value: namespace})
}

// LastSeq returns the highest journaled seq, or 0 for an empty journal.
// Pass it to engine.NewClockAt to continue numbering after a restart.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM events`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("read last seq: %w", err)
	}
	return seq.Int64, nil
}

func (s *Store) readEvents(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	index := make(map[int64]int)
	for rows.Next() {
		var (
			r   Record
			arg sql.NullString
		)
		if err := rows.Scan(&r.Seq, &r.ID, &r.Namespace, &r.Type, &r.Wrap, &arg); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if r.Arg, err = unmarshalArg(arg); err != nil {
			return nil, fmt.Errorf("event %d: %w", r.Seq, err)
		}
		index[r.Seq] = len(records)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	rows.Close()

	if len(records) == 0 {
		return records, nil
	}
	if err := s.attachFailures(ctx, records, index); err != nil {
		return nil, err
	}
	return records, nil
}

// attachFailures fills Record.Failures for the given records.
func (s *Store) attachFailures(ctx context.Context, records []Record, index map[int64]int) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, message FROM failures
		WHERE seq BETWEEN ? AND ?
		ORDER BY seq ASC, id ASC
	`, records[0].Seq, records[len(records)-1].Seq)
	if err != nil {
		return fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			seq int64
			msg string
		)
		if err := rows.Scan(&seq, &msg); err != nil {
			return fmt.Errorf("scan failure: %w", err)
		}
		if i, ok := index[seq]; ok {
			records[i].Failures = append(records[i].Failures, msg)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate failures: %w", err)
	}
	return nil
}
