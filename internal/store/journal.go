package store

import (
	"context"
	"log/slog"

	"github.com/roach88/nsaga/internal/ir"
)

// Journal adapts a Store to the engine's Observer interface.
//
// Observer methods cannot return errors; write failures are logged and the
// first one is kept for Err so a CLI run can report it at exit.
type Journal struct {
	store  *Store
	logger *slog.Logger
	err    error
}

// NewJournal creates a journal writing to s. A nil logger uses slog.Default().
func NewJournal(s *Store, logger *slog.Logger) *Journal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{store: s, logger: logger}
}

// Processed appends ev.
func (j *Journal) Processed(seq int64, ev ir.Event) {
	if err := j.store.Append(context.Background(), seq, ev); err != nil {
		j.record(err, "journal append failed", seq)
	}
}

// Failed appends the effect failure for seq.
func (j *Journal) Failed(seq int64, _ ir.Event, cause error) {
	if err := j.store.AppendFailure(context.Background(), seq, cause); err != nil {
		j.record(err, "journal failure append failed", seq)
	}
}

// Err returns the first write error, if any.
func (j *Journal) Err() error {
	return j.err
}

func (j *Journal) record(err error, msg string, seq int64) {
	j.logger.Error(msg, "seq", seq, "error", err)
	if j.err == nil {
		j.err = err
	}
}
