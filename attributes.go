package surrealrevision

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/goccy/go-json"
	"github.com/surrealdb/surrealrevision/pkg/constants"
)

// Attributes turns a record value into the field map a revision snapshots.
//
// Maps of type map[string]any are copied as they are. Anything else is
// converted through its JSON encoding, so `json` struct tags decide the
// field names, time.Time values become RFC 3339 strings, integral numbers
// become int64 and all other numbers float64. A nil value gives an empty map.
func Attributes(v any) (map[string]any, error) {
	switch t := v.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = val
		}
		return out, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %T: %v", constants.ErrUnsupportedValue, v, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %T: %v", constants.ErrUnsupportedValue, v, err)
	}
	if out == nil {
		return map[string]any{}, nil
	}

	for k, val := range out {
		out[k] = normalizeNumbers(val)
	}
	return out, nil
}

func normalizeNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeNumbers(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = normalizeNumbers(val)
		}
		return t
	default:
		return v
	}
}

// ModelName returns the type name of v with pointers removed, e.g. "app.User".
// It returns an empty string for nil.
func ModelName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return ""
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.String()
}
