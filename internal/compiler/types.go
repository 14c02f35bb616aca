package compiler

import "cuelang.org/go/cue/token"

// Op names a reducer case operation.
type Op string

const (
	// OpAdd adds By to an integer field.
	OpAdd Op = "add"

	// OpSet stores Value, or the event argument when no value is given.
	OpSet Op = "set"

	// OpAppend appends Value, or the unwrapped event type, to a list field.
	OpAppend Op = "append"

	// OpReset removes Field, or clears the whole model when Field is empty.
	OpReset Op = "reset"
)

// Spec is a compiled spec file.
type Spec struct {
	Reducers []ReducerSpec
	Saga     *SagaSpec
}

// ReducerSpec is one named reducer.
type ReducerSpec struct {
	Name string

	// Scope nests the reducer under "<Scope>.*" when non-empty.
	Scope string

	Cases []CaseSpec
	Pos   token.Pos
}

// CaseSpec is one matcher case of a reducer.
type CaseSpec struct {
	Match string
	Op    Op
	Field string

	// By is the increment for OpAdd. Defaults to 1.
	By int64

	// Value is the literal used by OpSet and OpAppend when HasValue is set.
	Value    any
	HasValue bool

	Pos token.Pos
}

// SagaSpec describes the task mounted per namespace.
type SagaSpec struct {
	// Start lists event types emitted once when the task starts.
	Start []string

	// React lists reactions in declaration order.
	React []Reaction

	Pos token.Pos
}

// Reaction emits Emit whenever the namespace publishes an event of type On.
// On is matched against the type with the namespace prefix removed.
type Reaction struct {
	On   string
	Emit string
}

// CaseCount returns the number of cases across all reducers.
func (s *Spec) CaseCount() int {
	n := 0
	for _, r := range s.Reducers {
		n += len(r.Cases)
	}
	return n
}
