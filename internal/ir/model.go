package ir

import "maps"

// Model is the accumulator used by declaratively compiled reducers.
//
// A Model is never mutated in place: every method that changes it returns a
// new map, so a Model handed to a subscriber stays stable.
type Model map[string]any

// With returns a copy of m with key set to value.
func (m Model) With(key string, value any) Model {
	out := make(Model, len(m)+1)
	maps.Copy(out, m)
	out[key] = value
	return out
}

// Without returns a copy of m with key removed.
func (m Model) Without(key string) Model {
	out := maps.Clone(m)
	if out == nil {
		return Model{}
	}
	delete(out, key)
	return out
}

// Int returns the integer stored at key, or 0 when absent or not an integer.
func (m Model) Int(key string) int64 {
	switch v := m[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case int32:
		return int64(v)
	default:
		return 0
	}
}

// List returns the list stored at key, or nil when absent.
func (m Model) List(key string) []any {
	v, _ := m[key].([]any)
	return v
}

// Clone returns a shallow copy of m. A nil Model clones to an empty one.
func (m Model) Clone() Model {
	if m == nil {
		return Model{}
	}
	return maps.Clone(m)
}
