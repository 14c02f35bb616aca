package compiler

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nsaga/internal/ir"
	"github.com/roach88/nsaga/internal/registry"
	"github.com/roach88/nsaga/internal/saga"
	"github.com/roach88/nsaga/internal/task"
	"github.com/roach88/nsaga/internal/testutil"
)

func buildReducer(t *testing.T, src string) func(ir.Model, *ir.Event) ir.Model {
	t.Helper()
	spec, err := compileString(t, src)
	require.NoError(t, err)
	require.Empty(t, Validate(spec))

	c := saga.New(registry.New[ir.Model]())
	require.NoError(t, Register(c, spec))
	return c.ToReducer()
}

func TestRegister_Ops(t *testing.T) {
	reduce := buildReducer(t, `
		reducer: counter: cases: [
			{match: "Inc", op: "add", field: "count"},
			{match: "Dec", op: "add", field: "count", by: -2},
			{match: "Set", op: "set", field: "label"},
			{match: "Flag", op: "set", field: "flag", value: true},
			{match: "Child.*", op: "append", field: "log"},
			{match: "Mark", op: "append", field: "log", value: "mark"},
			{match: "Forget", op: "reset", field: "label"},
			{match: "Clear", op: "reset"},
		]
	`)

	m := ir.Model{}
	m = reduce(m, &ir.Event{Type: "Inc"})
	m = reduce(m, &ir.Event{Type: "Inc"})
	m = reduce(m, &ir.Event{Type: "Dec"})
	assert.Equal(t, int64(0), m.Int("count"))

	m = reduce(m, &ir.Event{Type: "Set", Arg: "hello"})
	assert.Equal(t, "hello", m["label"])

	m = reduce(m, &ir.Event{Type: "Flag", Arg: "ignored"})
	assert.Equal(t, true, m["flag"])

	m = reduce(m, &ir.Event{Type: "Child.Open"})
	m = reduce(m, &ir.Event{Type: "Mark"})
	m = reduce(m, &ir.Event{Type: "Child.Close"})
	assert.Equal(t, []any{"Open", "mark", "Close"}, m.List("log"))

	m = reduce(m, &ir.Event{Type: "Forget"})
	_, ok := m["label"]
	assert.False(t, ok)

	m = reduce(m, &ir.Event{Type: "Clear"})
	assert.Equal(t, ir.Model{}, m)
}

func TestRegister_SetWithoutArgRemoves(t *testing.T) {
	reduce := buildReducer(t, `reducer: r: cases: [{match: "Set", op: "set", field: "v"}]`)

	m := reduce(ir.Model{"v": "old"}, &ir.Event{Type: "Set"})
	_, ok := m["v"]
	assert.False(t, ok)
}

func TestRegister_ModelNotMutated(t *testing.T) {
	reduce := buildReducer(t, `reducer: r: cases: [{match: "A", op: "append", field: "log"}]`)

	start := ir.Model{"log": []any{"x"}}
	next := reduce(start, &ir.Event{Type: "A"})

	assert.Equal(t, []any{"x"}, start.List("log"))
	assert.Equal(t, []any{"x", "A"}, next.List("log"))
}

func TestRegister_ScopedReducerNests(t *testing.T) {
	reduce := buildReducer(t, `
		reducer: child: {
			scope: "Child"
			cases: [
				{match: "Inc", op: "add", field: "child_count"},
				{match: "Grand.*", op: "append", field: "grand"},
			]
		}
	`)

	m := ir.Model{}
	m = reduce(m, &ir.Event{Type: "Child.Inc"})
	m = reduce(m, &ir.Event{Type: "Inc"})
	m = reduce(m, &ir.Event{Type: "Child.Grand.Tick"})

	assert.Equal(t, int64(1), m.Int("child_count"))
	assert.Equal(t, []any{"Tick"}, m.List("grand"))
}

func TestRegister_InvalidPatternReported(t *testing.T) {
	spec := &Spec{Reducers: []ReducerSpec{{
		Name:  "r",
		Cases: []CaseSpec{{Match: "A.*.B", Op: OpReset}},
	}}}

	err := Register(saga.New(registry.New[ir.Model]()), spec)
	assert.Error(t, err)

	spec.Reducers[0].Scope = "Child"
	err = Register(saga.New(registry.New[ir.Model]()), spec)
	assert.Error(t, err)
}

// =============================================================================
// Saga
// =============================================================================

type dispatched struct {
	mu     sync.Mutex
	events []ir.Event
}

func (d *dispatched) dispatch(ev ir.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, ev)
}

func (d *dispatched) types() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.events))
	for i, ev := range d.events {
		out[i] = ev.Type
	}
	return out
}

func TestSagaSpec_StartAndReact(t *testing.T) {
	s := &SagaSpec{
		Start: []string{"Ready"},
		React: []Reaction{{On: "Inc", Emit: "Seen"}, {On: "Seen", Emit: "Logged"}},
	}
	reg := registry.New[ir.Model]()
	d := &dispatched{}

	runner := task.NewGoRunner(s.Saga(testutil.DiscardLogger()), task.WithIDGenerator[ir.Model](testutil.NewSequentialIDs("t")))
	h, err := runner.Start(task.Scope[ir.Model]{Namespace: "X", Dispatch: d.dispatch, Registry: reg})
	require.NoError(t, err)

	assert.Equal(t, []string{"X.Ready"}, d.types())

	reg.Notify("X", ir.Event{Type: "Inc", Namespace: "X", Arg: int64(3)}, ir.Model{})
	reg.Notify("X", ir.Event{Type: "X.Seen", Namespace: "X"}, ir.Model{})
	reg.Notify("X", ir.Event{Type: "Other", Namespace: "X"}, ir.Model{})

	assert.Equal(t, []string{"X.Ready", "X.Seen", "X.Logged"}, d.types())
	d.mu.Lock()
	assert.Equal(t, int64(3), d.events[1].Arg)
	assert.Equal(t, "X", d.events[1].Namespace)
	d.mu.Unlock()

	h.Cancel()
	reg.Notify("X", ir.Event{Type: "Inc", Namespace: "X"}, ir.Model{})
	assert.Len(t, d.types(), 3, "cancelled task does not react")
}

func TestSagaSpec_StartOnly(t *testing.T) {
	s := &SagaSpec{Start: []string{"A", "B"}}
	reg := registry.New[ir.Model]()
	d := &dispatched{}

	runner := task.NewGoRunner(s.Saga(testutil.DiscardLogger()))
	_, err := runner.Start(task.Scope[ir.Model]{Namespace: "", Dispatch: d.dispatch, Registry: reg})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, d.types())
	assert.False(t, reg.HasSubscribers(""))
}

func TestEmitReaction_CancelledTaskLogged(t *testing.T) {
	reg := registry.New[ir.Model]()
	d := &dispatched{}

	var caps *task.Capabilities[ir.Model]
	runner := task.NewGoRunner(func(c *task.Capabilities[ir.Model]) (task.Body, error) {
		caps = c
		return nil, nil
	})
	h, err := runner.Start(task.Scope[ir.Model]{Namespace: "X", Dispatch: d.dispatch, Registry: reg})
	require.NoError(t, err)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	emitReaction(logger, caps, "Inc", "Seen", int64(1))
	assert.Equal(t, []string{"X.Seen"}, d.types())
	assert.Empty(t, buf.String())

	h.Cancel()
	emitReaction(logger, caps, "Inc", "Seen", int64(2))

	assert.Len(t, d.types(), 1)
	out := buf.String()
	assert.Contains(t, out, "level=DEBUG")
	assert.Contains(t, out, `msg="reaction not emitted"`)
	assert.Contains(t, out, "namespace=X")
	assert.Contains(t, out, "emit=Seen")
}
