package cli

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nsaga/internal/ir"
	"github.com/roach88/nsaga/internal/store"
)

// journalFor runs the counter scenario into a fresh journal and returns its
// path.
func journalFor(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "journal.db")
	_, _, err := execute(t, "run", counterScenario, "--db", db)
	require.NoError(t, err)
	return db
}

func TestTrace_Text(t *testing.T) {
	db := journalFor(t)

	out, _, err := execute(t, "trace", "--db", db)
	require.NoError(t, err)

	assert.Contains(t, out, "[1] @@nsaga/MOUNT ns=X\n")
	assert.Contains(t, out, "[5] @@nsaga/UNMOUNT ns=X\n")
	assert.Contains(t, out, "Events: 6, failures: 0\n")
	assert.Contains(t, out, "  X: 6\n")
	assert.NotContains(t, out, "id=")
}

func TestTrace_VerboseShowsIDs(t *testing.T) {
	db := journalFor(t)

	out, _, err := execute(t, "-v", "trace", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "    id=")
}

func TestTrace_NamespaceFilter(t *testing.T) {
	db := journalFor(t)

	out, _, err := execute(t, "trace", "--db", db, "--namespace", "Y")
	require.NoError(t, err)
	assert.Equal(t, "No matching events found.\n", out)

	out, _, err = execute(t, "--format", "json", "trace", "--db", db, "--namespace", "X")
	require.NoError(t, err)

	var result TraceResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "X", result.Namespace)
	assert.Equal(t, 6, result.Stats.TotalEvents)
	require.Len(t, result.Events, 6)
	assert.Equal(t, "X.Ready", result.Events[1].Type)
	assert.NotEmpty(t, result.Events[1].ID)
}

func TestTrace_RootNamespaceAndFailures(t *testing.T) {
	ctx := context.Background()
	db := filepath.Join(t.TempDir(), "journal.db")

	st, err := store.Open(db)
	require.NoError(t, err)
	require.NoError(t, st.Append(ctx, 1, ir.Event{Type: "Inc", Arg: int64(3)}))
	require.NoError(t, st.Append(ctx, 2, ir.Event{Type: "Inc", Namespace: "X"}))
	require.NoError(t, st.AppendFailure(ctx, 1, errors.New("boom")))
	require.NoError(t, st.Close())

	out, _, err := execute(t, "trace", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "[1] Inc arg=3\n    effect failed: boom\n")
	assert.Contains(t, out, "Events: 2, failures: 1\n")
	assert.Contains(t, out, "  (root): 1\n")

	out, _, err = execute(t, "--format", "json", "trace", "--db", db, "--namespace", "")
	require.NoError(t, err)

	var result TraceResult
	decodeResponse(t, out, &result)
	require.Len(t, result.Events, 1)
	assert.Equal(t, []string{"boom"}, result.Events[0].Failures)
	assert.Equal(t, float64(3), result.Events[0].Arg)
	assert.Equal(t, 1, result.Stats.Failures)
}

func TestTrace_TypeAndFailedFilters(t *testing.T) {
	ctx := context.Background()
	db := filepath.Join(t.TempDir(), "journal.db")

	st, err := store.Open(db)
	require.NoError(t, err)
	require.NoError(t, st.Append(ctx, 1, ir.Event{Type: "Inc", Namespace: "X"}))
	require.NoError(t, st.Append(ctx, 2, ir.Event{Type: "Dec", Namespace: "X"}))
	require.NoError(t, st.Append(ctx, 3, ir.Event{Type: "Inc", Namespace: "X"}))
	require.NoError(t, st.AppendFailure(ctx, 3, errors.New("boom")))
	require.NoError(t, st.Close())

	out, _, err := execute(t, "trace", "--db", db, "--type", "Inc")
	require.NoError(t, err)
	assert.Contains(t, out, "[1] Inc ns=X\n")
	assert.Contains(t, out, "[3] Inc ns=X\n")
	assert.NotContains(t, out, "Dec")

	out, _, err = execute(t, "trace", "--db", db, "--type", "Inc", "--failed")
	require.NoError(t, err)
	assert.NotContains(t, out, "[1] Inc")
	assert.Contains(t, out, "[3] Inc ns=X\n    effect failed: boom\n")

	out, _, err = execute(t, "trace", "--db", db, "--type", "Dec", "--failed")
	require.NoError(t, err)
	assert.Equal(t, "No matching events found.\n", out)
}

func TestTraceFilter(t *testing.T) {
	opts := &TraceOptions{Namespace: "X", Type: "Inc", Failed: true}

	assert.Equal(t, store.And{Predicates: []store.Predicate{
		store.Equals{Column: store.ColumnNamespace, Value: "X"},
		store.Equals{Column: store.ColumnType, Value: "Inc"},
		store.HasFailure{},
	}}, traceFilter(opts, true))

	assert.Equal(t, store.And{Predicates: []store.Predicate{
		store.Equals{Column: store.ColumnType, Value: "Inc"},
		store.HasFailure{},
	}}, traceFilter(opts, false))

	assert.Equal(t, store.And{}, traceFilter(&TraceOptions{}, false))
}

func TestTrace_MissingJournal(t *testing.T) {
	db := filepath.Join(t.TempDir(), "missing.db")

	out, _, err := execute(t, "trace", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "journal not found")
	assert.NoFileExists(t, db)

	_, _, err = execute(t, "trace")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no journal")
}
