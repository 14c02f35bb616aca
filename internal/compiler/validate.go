package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/nsaga/internal/ir"
	"github.com/roach88/nsaga/internal/matcher"
)

// Validation error codes (E200-E299)
const (
	// Reducer errors (E201-E209)
	ErrReducerNoCases   = "E201" // reducer must have at least one case
	ErrInvalidPattern   = "E202" // match pattern does not compile
	ErrUnknownOp        = "E203" // op is not add, set, append or reset
	ErrFieldRequired    = "E204" // add, set and append need a field
	ErrInvalidScope     = "E205" // scope is not a valid label prefix
	ErrValueNotAllowed  = "E206" // add and reset take no value
	ErrInvalidEventType = "E207" // event type is empty or contains a wildcard

	// Saga errors (E210-E219)
	ErrSagaEmpty = "E210" // saga has neither start nor react
)

// ValidationError represents a semantic error in a parsed spec.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks spec against semantic rules.
// Returns all errors found (does not fail-fast).
func Validate(spec *Spec) []ValidationError {
	var errs []ValidationError
	for _, r := range spec.Reducers {
		errs = append(errs, validateReducer(r)...)
	}
	if spec.Saga != nil {
		errs = append(errs, validateSaga(spec.Saga)...)
	}
	return errs
}

func validateReducer(r ReducerSpec) []ValidationError {
	var errs []ValidationError
	path := "reducer." + r.Name

	if len(r.Cases) == 0 {
		errs = append(errs, ValidationError{
			Field:   path + ".cases",
			Message: "at least one case is required",
			Code:    ErrReducerNoCases,
			Line:    r.Pos.Line(),
		})
	}

	if r.Scope != "" {
		if _, err := matcher.DefaultPredicate(r.Scope + ir.Separator + "*"); err != nil {
			errs = append(errs, ValidationError{
				Field:   path + ".scope",
				Message: fmt.Sprintf("scope %q is not a valid label prefix", r.Scope),
				Code:    ErrInvalidScope,
				Line:    r.Pos.Line(),
			})
		}
	}

	for i, c := range r.Cases {
		errs = append(errs, validateCase(fmt.Sprintf("%s.cases[%d]", path, i), c)...)
	}
	return errs
}

func validateCase(path string, c CaseSpec) []ValidationError {
	var errs []ValidationError
	line := c.Pos.Line()

	if _, err := matcher.DefaultPredicate(c.Match); err != nil {
		errs = append(errs, ValidationError{
			Field:   path + ".match",
			Message: err.Error(),
			Code:    ErrInvalidPattern,
			Line:    line,
		})
	}

	switch c.Op {
	case OpAdd, OpSet, OpAppend:
		if c.Field == "" {
			errs = append(errs, ValidationError{
				Field:   path + ".field",
				Message: fmt.Sprintf("op %q requires a field", c.Op),
				Code:    ErrFieldRequired,
				Line:    line,
			})
		}
	case OpReset:
	default:
		errs = append(errs, ValidationError{
			Field:   path + ".op",
			Message: fmt.Sprintf("unknown op %q (want add, set, append or reset)", c.Op),
			Code:    ErrUnknownOp,
			Line:    line,
		})
	}

	if c.HasValue && (c.Op == OpAdd || c.Op == OpReset) {
		errs = append(errs, ValidationError{
			Field:   path + ".value",
			Message: fmt.Sprintf("op %q takes no value", c.Op),
			Code:    ErrValueNotAllowed,
			Line:    line,
		})
	}

	return errs
}

func validateSaga(s *SagaSpec) []ValidationError {
	var errs []ValidationError
	line := s.Pos.Line()

	if len(s.Start) == 0 && len(s.React) == 0 {
		errs = append(errs, ValidationError{
			Field:   "saga",
			Message: "saga needs at least one start event or reaction",
			Code:    ErrSagaEmpty,
			Line:    line,
		})
	}

	for i, typ := range s.Start {
		if msg := checkEventType(typ); msg != "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("saga.start[%d]", i),
				Message: msg,
				Code:    ErrInvalidEventType,
				Line:    line,
			})
		}
	}

	for _, r := range s.React {
		for _, typ := range []string{r.On, r.Emit} {
			if msg := checkEventType(typ); msg != "" {
				errs = append(errs, ValidationError{
					Field:   "saga.react." + r.On,
					Message: msg,
					Code:    ErrInvalidEventType,
					Line:    line,
				})
			}
		}
	}

	return errs
}

func checkEventType(typ string) string {
	switch {
	case strings.TrimSpace(typ) == "":
		return "event type must be non-empty"
	case strings.Contains(typ, "*"):
		return fmt.Sprintf("event type %q must not contain a wildcard", typ)
	}
	return ""
}
