package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Keys every stored document carries.
const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
	// FieldVersion is bumped on every Save and hidden from default projections.
	FieldVersion = "__v"
)

// Document is a schemaless stored record keyed by JSON field name.
type Document map[string]any

// ID returns the document id or "".
func (d Document) ID() string {
	return d.String(FieldID)
}

// String returns the string stored under key, or "".
func (d Document) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// Int returns the value under key as an integer when it is numeric.
func (d Document) Int(key string) (int64, bool) {
	return ToInt(d[key])
}

// Float returns the value under key as a float, or 0.
func (d Document) Float(key string) float64 {
	f, _ := ToFloat(d[key])
	return f
}

// Time returns the value under key parsed as a timestamp.
func (d Document) Time(key string) (time.Time, bool) {
	switch v := d[key].(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		return t, err == nil
	}
	return time.Time{}, false
}

// Ref returns the id referenced under key. References are either a plain id
// or an expanded document carrying an id.
func (d Document) Ref(key string) string {
	return RefID(d[key])
}

// Strings returns the list under key as ids. Expanded documents contribute
// their id.
func (d Document) Strings(key string) []string {
	list, ok := d[key].([]any)
	if !ok {
		if ss, ok := d[key].([]string); ok {
			return append([]string(nil), ss...)
		}
		return nil
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		if id := RefID(v); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// Clone returns a deep copy of d.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	return cloneValue(map[string]any(d)).(map[string]any)
}

// Merge returns a copy of d with patch applied on top.
func (d Document) Merge(patch Document) Document {
	out := d.Clone()
	if out == nil {
		out = Document{}
	}
	for k, v := range patch {
		out[k] = cloneValue(v)
	}
	return out
}

// Without returns a copy of d without the given keys.
func (d Document) Without(keys ...string) Document {
	out := d.Clone()
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// RefID extracts an id from a plain id or an expanded document.
func RefID(v any) string {
	switch r := v.(type) {
	case string:
		return r
	case Document:
		return r.ID()
	case map[string]any:
		if id, ok := r[FieldID].(string); ok {
			return id
		}
		id, _ := r["_id"].(string)
		return id
	}
	return ""
}

// ToFloat converts numeric values, including numeric strings, to float64.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

// ToInt converts integral numeric values to int64. Fractional values are
// rejected.
func ToInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	}
	f, ok := ToFloat(v)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int64(f), true
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Document:
		return Document(cloneValue(map[string]any(t)).(map[string]any))
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = cloneValue(val)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, val := range t {
			s[i] = cloneValue(val)
		}
		return s
	case []string:
		return append([]string(nil), t...)
	}
	return v
}
