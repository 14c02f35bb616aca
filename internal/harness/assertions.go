package harness

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/roach88/nsaga/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s", event.Seq, event.Type)
			if event.Namespace != "" {
				fmt.Fprintf(&buf, " ns=%s", event.Namespace)
			}
			if event.Arg != nil {
				fmt.Fprintf(&buf, " arg=%v", event.Arg)
			}
			buf.WriteByte('\n')
		}
	}

	return buf.String()
}

// AssertionContext is what assertions are evaluated against.
type AssertionContext struct {
	Trace []TraceEvent
	Model ir.Model

	// State returns the registry state of a namespace.
	State func(ns string) (ir.Model, bool)

	// Running reports whether a namespace has a running task.
	Running func(ns string) bool

	// Notified counts listener calls per namespace.
	Notified map[string]int
}

// EvaluateAssertions evaluates all assertions and returns the failure
// messages.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(actx.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(actx.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(actx.Trace, assertion)
		case AssertFinalModel:
			err = assertModel(AssertFinalModel, actx.Model, true, assertion)
		case AssertNamespaceState:
			if actx.State == nil {
				err = fmt.Errorf("assertion[%d]: namespace_state requires registry context", i)
				break
			}
			state, ok := actx.State(assertion.Namespace)
			err = assertModel(AssertNamespaceState, state, ok, assertion)
		case AssertTaskRunning:
			err = assertTaskRunning(actx.Running, assertion)
		case AssertNotified:
			err = assertNotified(actx.Notified, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

// matchesEvent reports whether a trace event has the assertion's type and,
// when given, its namespace.
func matchesEvent(event TraceEvent, typ string, assertion Assertion) bool {
	if event.Type != typ {
		return false
	}
	return assertion.Namespace == "" || event.Namespace == assertion.Namespace
}

// assertTraceContains checks if the trace contains the event, with a matching
// argument when one is given.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	want, err := normalize(assertion.Arg)
	if err != nil {
		return fmt.Errorf("trace_contains arg: %w", err)
	}

	for _, event := range trace {
		if !matchesEvent(event, assertion.Event, assertion) {
			continue
		}
		if want == nil || reflect.DeepEqual(event.Arg, want) {
			return nil
		}
	}

	expected := describeEvent(assertion.Event, assertion.Namespace)
	if want != nil {
		expected += fmt.Sprintf(" with arg %v", want)
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that events first appear in the given order.
// Other events may appear in between.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		for _, expected := range assertion.Events {
			if positions[expected] == 0 && matchesEvent(event, expected, assertion) {
				positions[expected] = i + 1 // 1-indexed for readability
			}
		}
	}

	for _, typ := range assertion.Events {
		if positions[typ] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all events present: %v", assertion.Events),
				Actual:   fmt.Sprintf("missing event: %s", typ),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Events); i++ {
		prev := assertion.Events[i-1]
		curr := assertion.Events[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("events in order: %v", assertion.Events),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that the event was processed exactly Count times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if matchesEvent(event, assertion.Event, assertion) {
			count++
		}
	}

	if count != *assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", *assertion.Count, describeEvent(assertion.Event, assertion.Namespace)),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertModel checks that model contains every expected field (subset match).
func assertModel(kind string, model ir.Model, exists bool, assertion Assertion) error {
	if !exists {
		return &AssertionError{
			Type:     kind,
			Expected: fmt.Sprintf("state for namespace %q", assertion.Namespace),
			Actual:   "namespace has no state",
		}
	}

	expected, err := normalizeMap(assertion.Expect)
	if err != nil {
		return fmt.Errorf("%s expect: %w", kind, err)
	}
	actual, err := normalizeMap(model)
	if err != nil {
		return fmt.Errorf("%s model: %w", kind, err)
	}

	for _, key := range sortedFields(expected) {
		actualValue, ok := actual[key]
		if !ok {
			return &AssertionError{
				Type:     kind,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("fields present: %v", sortedFields(actual)),
			}
		}
		if !reflect.DeepEqual(expected[key], actualValue) {
			return &AssertionError{
				Type:     kind,
				Expected: fmt.Sprintf("field %q = %v", key, expected[key]),
				Actual:   fmt.Sprintf("field %q = %v", key, actualValue),
			}
		}
	}
	return nil
}

func assertTaskRunning(running func(string) bool, assertion Assertion) error {
	got := running != nil && running(assertion.Namespace)
	if got != *assertion.Running {
		return &AssertionError{
			Type:     AssertTaskRunning,
			Expected: fmt.Sprintf("task running in %q: %t", assertion.Namespace, *assertion.Running),
			Actual:   fmt.Sprintf("task running: %t", got),
		}
	}
	return nil
}

func assertNotified(notified map[string]int, assertion Assertion) error {
	got := notified[assertion.Namespace]
	if got != *assertion.Count {
		return &AssertionError{
			Type:     AssertNotified,
			Expected: fmt.Sprintf("%d notifications for %q", *assertion.Count, assertion.Namespace),
			Actual:   fmt.Sprintf("%d notifications", got),
		}
	}
	return nil
}

func describeEvent(typ, ns string) string {
	if ns == "" {
		return fmt.Sprintf("event %s", typ)
	}
	return fmt.Sprintf("event %s in namespace %s", typ, ns)
}

func sortedFields(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
