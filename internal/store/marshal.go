package store

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/nsaga/internal/ir"
)

// marshalArg converts an event argument to canonical JSON TEXT.
// A nil argument is stored as NULL.
func marshalArg(arg any) (sql.NullString, error) {
	if arg == nil {
		return sql.NullString{}, nil
	}
	data, err := ir.MarshalCanonical(arg)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal arg: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// unmarshalArg parses a stored argument. Integers come back as int64.
func unmarshalArg(data sql.NullString) (any, error) {
	if !data.Valid {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(data.String)))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("unmarshal arg: %w", err)
	}
	return convertNumbers(v)
}

func convertNumbers(v any) (any, error) {
	switch val := v.(type) {
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("unmarshal arg: non-integer number %s", val)
		}
		return n, nil
	case []any:
		for i, item := range val {
			c, err := convertNumbers(item)
			if err != nil {
				return nil, err
			}
			val[i] = c
		}
		return val, nil
	case map[string]any:
		for k, item := range val {
			c, err := convertNumbers(item)
			if err != nil {
				return nil, err
			}
			val[k] = c
		}
		return val, nil
	default:
		return v, nil
	}
}
