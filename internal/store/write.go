package store

import (
	"context"
	"fmt"

	"github.com/roach88/nsaga/internal/ir"
)

// Append journals ev as the event processed at turn seq.
// Uses ON CONFLICT(seq) DO NOTHING, so writing the same turn twice is a no-op.
func (s *Store) Append(ctx context.Context, seq int64, ev ir.Event) error {
	id, err := ir.EventID(seq, ev)
	if err != nil {
		return fmt.Errorf("append event %d: %w", seq, err)
	}

	arg, err := marshalArg(ev.Arg)
	if err != nil {
		return fmt.Errorf("append event %d: %w", seq, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (seq, id, namespace, type, wrap, arg)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(seq) DO NOTHING
	`,
		seq,
		id,
		ev.Namespace,
		ev.Type,
		ev.Wrap,
		arg,
	)
	if err != nil {
		return fmt.Errorf("append event %d: %w", seq, err)
	}

	return nil
}

// AppendFailure records a failed effect of the event journaled at seq.
// The event row must exist (foreign key).
func (s *Store) AppendFailure(ctx context.Context, seq int64, cause error) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO failures (seq, message) VALUES (?, ?)
	`, seq, cause.Error())
	if err != nil {
		return fmt.Errorf("append failure %d: %w", seq, err)
	}
	return nil
}
