package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nsaga/internal/engine"
	"github.com/roach88/nsaga/internal/ir"
)

var _ engine.Observer = (*Journal)(nil)

func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// =============================================================================
// Open
// =============================================================================

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name string
		want string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
		{"user_version", "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.pragma(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, 1, ir.Event{Type: "Inc"}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	records, err := s.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Inc", records[0].Type)
}

func TestOpen_BadPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "journal.db"))
	assert.Error(t, err)
}

func TestClose_Twice(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}

// =============================================================================
// Append / Read
// =============================================================================

func TestAppend_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	ev := ir.Event{
		Type:      "X.Set",
		Namespace: "X",
		Wrap:      "Child.",
		Arg:       map[string]any{"label": "hi", "n": 3, "tags": []any{"a", int64(9)}},
	}
	require.NoError(t, s.Append(ctx, 7, ev))

	records, err := s.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, int64(7), r.Seq)
	assert.Equal(t, ir.MustEventID(7, ev), r.ID)
	assert.Equal(t, "X", r.Namespace)
	assert.Equal(t, "X.Set", r.Type)
	assert.Equal(t, "Child.", r.Wrap)
	assert.Equal(t, map[string]any{"label": "hi", "n": int64(3), "tags": []any{"a", int64(9)}}, r.Arg)
	assert.Empty(t, r.Failures)

	rebuilt := r.Event()
	assert.Equal(t, "X.Set", rebuilt.Type)
	assert.Nil(t, rebuilt.Exec)
}

func TestAppend_NilArgIsNull(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, 1, ir.Event{Type: "Inc"}))

	records, err := s.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Nil(t, records[0].Arg)
}

func TestAppend_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, 1, ir.Event{Type: "Inc"}))
	require.NoError(t, s.Append(ctx, 1, ir.Event{Type: "Inc"}))

	records, err := s.ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestAppend_RejectsFloatArg(t *testing.T) {
	s := createTestStore(t)

	err := s.Append(context.Background(), 1, ir.Event{Type: "Inc", Arg: 1.5})
	assert.Error(t, err)
}

func TestReadAll_Empty(t *testing.T) {
	s := createTestStore(t)

	records, err := s.ReadAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestReadAll_OrderedBySeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, seq := range []int64{3, 1, 2} {
		require.NoError(t, s.Append(ctx, seq, ir.Event{Type: "Inc"}))
	}

	records, err := s.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{records[0].Seq, records[1].Seq, records[2].Seq})
}

func TestReadNamespace(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, 1, ir.Event{Type: ir.Mount, Namespace: "X"}))
	require.NoError(t, s.Append(ctx, 2, ir.Event{Type: "Inc"}))
	require.NoError(t, s.Append(ctx, 3, ir.Event{Type: "Inc", Namespace: "X"}))
	require.NoError(t, s.Append(ctx, 4, ir.Event{Type: ir.Mount, Namespace: "Y"}))

	x, err := s.ReadNamespace(ctx, "X")
	require.NoError(t, err)
	require.Len(t, x, 2)
	assert.Equal(t, int64(1), x[0].Seq)
	assert.Equal(t, int64(3), x[1].Seq)

	root, err := s.ReadNamespace(ctx, "")
	require.NoError(t, err)
	require.Len(t, root, 1)
	assert.Equal(t, int64(2), root[0].Seq)

	none, err := s.ReadNamespace(ctx, "Z")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLastSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	seq, err := s.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)

	require.NoError(t, s.Append(ctx, 4, ir.Event{Type: "Inc"}))
	require.NoError(t, s.Append(ctx, 9, ir.Event{Type: "Inc"}))

	seq, err = s.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(9), seq)
}

// =============================================================================
// Failures
// =============================================================================

func TestAppendFailure(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, 1, ir.Event{Type: ir.Mount, Namespace: "X"}))
	require.NoError(t, s.Append(ctx, 2, ir.Event{Type: "Inc"}))
	require.NoError(t, s.AppendFailure(ctx, 1, errors.New("first")))
	require.NoError(t, s.AppendFailure(ctx, 1, errors.New("second")))

	records, err := s.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"first", "second"}, records[0].Failures)
	assert.Empty(t, records[1].Failures)
}

func TestAppendFailure_UnknownSeq(t *testing.T) {
	s := createTestStore(t)

	err := s.AppendFailure(context.Background(), 42, errors.New("orphan"))
	assert.Error(t, err, "foreign key rejects failures without an event")
}

// =============================================================================
// Journal
// =============================================================================

func TestJournal_RecordsEngineTurns(t *testing.T) {
	s := createTestStore(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	j := NewJournal(s, logger)

	e := engine.New(func(acc int, ev *ir.Event) int {
		if ev.Type == "Bad" {
			ev.Exec(func(ir.Dispatch) error { return errors.New("effect broke") })
		}
		return acc + 1
	}, 0, engine.WithObserver[int](j), engine.WithLogger[int](logger))

	e.Dispatch(ir.Event{Type: "Inc", Namespace: "X"})
	e.Dispatch(ir.Event{Type: "Bad"})
	_ = e.Drain(context.Background())
	require.NoError(t, j.Err())

	records, err := s.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Inc", records[0].Type)
	assert.Equal(t, "X", records[0].Namespace)
	assert.Equal(t, "Bad", records[1].Type)
	assert.Equal(t, []string{"effect broke"}, records[1].Failures)
}

func TestJournal_KeepsFirstError(t *testing.T) {
	s := createTestStore(t)
	j := NewJournal(s, slog.New(slog.NewTextHandler(io.Discard, nil)))

	j.Processed(1, ir.Event{Type: "Inc", Arg: 2.5})
	j.Failed(99, ir.Event{Type: "Inc"}, errors.New("x"))

	require.Error(t, j.Err())
	assert.Contains(t, j.Err().Error(), "append event 1")
}
