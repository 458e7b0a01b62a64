package mockstore

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Record is a single flat row.
type Record map[string]any

// ID returns the row id, or "" when the row has none.
func (r Record) ID() string {
	id, _ := r["id"].(string)
	return id
}

// String returns the field as a string, or "" when absent or not a string.
func (r Record) String(field string) string {
	s, _ := r[field].(string)
	return s
}

// Number returns the field as a float64, or 0 when absent or not a number.
func (r Record) Number(field string) float64 {
	f, _ := r[field].(float64)
	return f
}

// Decode converts the row into a typed model through its JSON form.
func (r Record) Decode(v any) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// normalizeRecord returns a deep copy of r in JSON form: numbers become
// float64, nested objects map[string]any, and unsupported values fail.
func normalizeRecord(r map[string]any) (Record, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var out Record
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = Record{}
	}
	return out, nil
}

func normalizeValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// clone deep-copies a JSON-shaped value.
func clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, x := range t {
			m[k] = clone(x)
		}
		return m
	case Record:
		return cloneRecord(t)
	case []any:
		s := make([]any, len(t))
		for i, x := range t {
			s[i] = clone(x)
		}
		return s
	default:
		return v
	}
}

func cloneRecord(r Record) Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = clone(v)
	}
	return out
}

// scalarString is the canonical text form used when a filter value arrives
// as a string (query parameters) and the field holds a number or bool.
func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

// valueEqual reports whether a stored field value equals a filter value.
func valueEqual(field, want any) bool {
	if reflect.DeepEqual(field, want) {
		return true
	}
	_, fs := field.(string)
	_, ws := want.(string)
	if fs == ws {
		return false
	}
	a, ok1 := scalarString(field)
	b, ok2 := scalarString(want)
	return ok1 && ok2 && a == b
}

// matchValue treats a slice filter value as an "in" list.
func matchValue(field, want any) bool {
	if list, ok := want.([]any); ok {
		for _, w := range list {
			if valueEqual(field, w) {
				return true
			}
		}
		return false
	}
	return valueEqual(field, want)
}

// typeRank orders values of different kinds so mixed columns still sort
// deterministically.
func typeRank(v any) int {
	switch v.(type) {
	case bool:
		return 0
	case float64:
		return 1
	case string:
		return 2
	default:
		return 3
	}
}

// compareValues orders two non-nil field values.
func compareValues(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		return ra - rb
	}
	switch x := a.(type) {
	case float64:
		y := b.(float64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case string:
		return strings.Compare(x, b.(string))
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	default:
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
}
