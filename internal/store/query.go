package store

import (
	"strings"
)

// Filter maps field names to predicates. A value is one of:
//   - nil: the field is null or missing
//   - Range: numeric comparison
//   - In: membership
//   - Text (under TextKey only): case-insensitive search
//   - anything else: equality
type Filter map[string]any

// TextKey holds a Text predicate in a Filter.
const TextKey = "$text"

// Range is a numeric range predicate. Nil bounds are ignored.
type Range struct {
	Lt  *float64 `json:"lt,omitempty"`
	Lte *float64 `json:"lte,omitempty"`
	Gt  *float64 `json:"gt,omitempty"`
	Gte *float64 `json:"gte,omitempty"`
}

// Empty reports whether no bound is set.
func (r Range) Empty() bool {
	return r.Lt == nil && r.Lte == nil && r.Gt == nil && r.Gte == nil
}

// Match reports whether v satisfies every bound.
func (r Range) Match(v float64) bool {
	return (r.Lt == nil || v < *r.Lt) &&
		(r.Lte == nil || v <= *r.Lte) &&
		(r.Gt == nil || v > *r.Gt) &&
		(r.Gte == nil || v >= *r.Gte)
}

// In matches any of the listed values.
type In []any

// Text matches Term as a case-insensitive substring of any of Fields.
type Text struct {
	Fields []string
	Term   string
}

// Clone returns a shallow copy of f.
func (f Filter) Clone() Filter {
	out := make(Filter, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// NaturalOrder sorts by insertion order.
const NaturalOrder = "$natural"

// SortField is one ordering key.
type SortField struct {
	Field string
	Desc  bool
}

// Projection selects fields. Include wins when both are set; the id is always
// returned.
type Projection struct {
	Include []string
	Exclude []string
}

// Apply projects doc in place.
func (p Projection) Apply(doc map[string]any) map[string]any {
	if len(p.Include) > 0 {
		keep := make(map[string]struct{}, len(p.Include)+1)
		keep["id"] = struct{}{}
		for _, f := range p.Include {
			keep[f] = struct{}{}
		}
		for k := range doc {
			if _, ok := keep[k]; !ok {
				delete(doc, k)
			}
		}
		return doc
	}
	for _, f := range p.Exclude {
		delete(doc, f)
	}
	return doc
}

// Query is a filtered, sorted, projected and paged retrieval request.
// Limit 0 means no limit.
type Query struct {
	Filter Filter
	Sort   []SortField
	Fields Projection
	Skip   int
	Limit  int
}

// SortString renders the sort spec in "-a,b" form, used in traces and logs.
func SortString(s []SortField) string {
	parts := make([]string, len(s))
	for i, f := range s {
		if f.Desc {
			parts[i] = "-" + f.Field
		} else {
			parts[i] = f.Field
		}
	}
	return strings.Join(parts, ",")
}
