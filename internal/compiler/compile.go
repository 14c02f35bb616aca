package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileFile reads and compiles the spec file at path.
func CompileFile(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spec: %w", err)
	}
	return CompileBytes(path, data)
}

// CompileBytes compiles CUE source. name is used in error positions.
func CompileBytes(name string, src []byte) (*Spec, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(name))
	return Compile(v)
}

// Compile parses a CUE value holding a reducer section and an optional saga
// section.
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`reducer: counter: cases: [...]`)
//	spec, err := Compile(v)
func Compile(v cue.Value) (*Spec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	reducersVal := v.LookupPath(cue.ParsePath("reducer"))
	if !reducersVal.Exists() {
		return nil, &CompileError{
			Field:   "reducer",
			Message: "reducer is required",
			Pos:     v.Pos(),
		}
	}

	spec := &Spec{}

	iter, err := reducersVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		r, err := parseReducer(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		spec.Reducers = append(spec.Reducers, r)
	}

	if len(spec.Reducers) == 0 {
		return nil, &CompileError{
			Field:   "reducer",
			Message: "at least one reducer is required",
			Pos:     reducersVal.Pos(),
		}
	}

	sagaVal := v.LookupPath(cue.ParsePath("saga"))
	if sagaVal.Exists() {
		s, err := parseSaga(sagaVal)
		if err != nil {
			return nil, err
		}
		spec.Saga = s
	}

	return spec, nil
}

func parseReducer(name string, v cue.Value) (ReducerSpec, error) {
	r := ReducerSpec{Name: name, Pos: v.Pos()}

	scopeVal := v.LookupPath(cue.ParsePath("scope"))
	if scopeVal.Exists() {
		scope, err := scopeVal.String()
		if err != nil {
			return r, formatCUEError(err)
		}
		r.Scope = scope
	}

	casesVal := v.LookupPath(cue.ParsePath("cases"))
	if !casesVal.Exists() {
		return r, &CompileError{
			Field:   fmt.Sprintf("reducer.%s.cases", name),
			Message: "cases is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := casesVal.List()
	if err != nil {
		return r, formatCUEError(err)
	}
	for i := 0; iter.Next(); i++ {
		c, err := parseCase(fmt.Sprintf("reducer.%s.cases[%d]", name, i), iter.Value())
		if err != nil {
			return r, err
		}
		r.Cases = append(r.Cases, c)
	}

	return r, nil
}

func parseCase(path string, v cue.Value) (CaseSpec, error) {
	c := CaseSpec{By: 1, Pos: v.Pos()}

	var err error
	if c.Match, err = requiredString(v, path, "match"); err != nil {
		return c, err
	}

	op, err := requiredString(v, path, "op")
	if err != nil {
		return c, err
	}
	c.Op = Op(op)

	fieldVal := v.LookupPath(cue.ParsePath("field"))
	if fieldVal.Exists() {
		if c.Field, err = fieldVal.String(); err != nil {
			return c, formatCUEError(err)
		}
	}

	byVal := v.LookupPath(cue.ParsePath("by"))
	if byVal.Exists() {
		if c.By, err = byVal.Int64(); err != nil {
			return c, &CompileError{
				Field:   path + ".by",
				Message: "by must be an integer",
				Pos:     byVal.Pos(),
			}
		}
	}

	valueVal := v.LookupPath(cue.ParsePath("value"))
	if valueVal.Exists() {
		value, err := decodeValue(path+".value", valueVal)
		if err != nil {
			return c, err
		}
		c.Value = value
		c.HasValue = true
	}

	return c, nil
}

func parseSaga(v cue.Value) (*SagaSpec, error) {
	s := &SagaSpec{Pos: v.Pos()}

	startVal := v.LookupPath(cue.ParsePath("start"))
	if startVal.Exists() {
		iter, err := startVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			typ, err := iter.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			s.Start = append(s.Start, typ)
		}
	}

	reactVal := v.LookupPath(cue.ParsePath("react"))
	if reactVal.Exists() {
		iter, err := reactVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			emit, err := iter.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			s.React = append(s.React, Reaction{On: iter.Label(), Emit: emit})
		}
	}

	return s, nil
}

func requiredString(v cue.Value, path, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{
			Field:   path + "." + field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// decodeValue converts a concrete CUE value to the types ir.Model holds:
// string, int64, bool, []any and map[string]any. Floats and null are rejected.
func decodeValue(path string, v cue.Value) (any, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return s, nil

	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return n, nil

	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return b, nil

	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := []any{}
		for i := 0; iter.Next(); i++ {
			item, err := decodeValue(fmt.Sprintf("%s[%d]", path, i), iter.Value())
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil

	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := map[string]any{}
		for iter.Next() {
			item, err := decodeValue(path+"."+iter.Label(), iter.Value())
			if err != nil {
				return nil, err
			}
			out[iter.Label()] = item
		}
		return out, nil

	default:
		return nil, &CompileError{
			Field:   path,
			Message: fmt.Sprintf("unsupported value kind %s (floats and null are not allowed)", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileError is a parse error with its CUE source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
