// Package query turns request query parameters into a store.Query.
//
// The stages are applied in a fixed order and do no I/O:
//
//	q, page, err := query.New(r.URL.Query(), opts).
//		Filter(base).
//		Sort().
//		LimitFields().
//		Paginate().
//		Result()
package query

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/tieenbuii/WEB-API/internal/domain"
	"github.com/tieenbuii/WEB-API/internal/store"
	apperrors "github.com/tieenbuii/WEB-API/pkg/errors"
	"github.com/tieenbuii/WEB-API/pkg/pagination"
)

// DefaultSort orders newest first.
const DefaultSort = "-" + domain.FieldCreatedAt

// Reserved parameters never become filter predicates.
var reserved = map[string]struct{}{
	"page":   {},
	"sort":   {},
	"limit":  {},
	"fields": {},
}

var rangeOps = []string{"lt", "lte", "gt", "gte"}

// Options configures the pipeline.
type Options struct {
	// RangeFields accept <field>_lt, _lte, _gt and _gte (or <field>[gte]).
	RangeFields  []string
	DefaultLimit int
}

// DefaultOptions returns price and promotion as range fields and a page size
// of pagination.DefaultLimit.
func DefaultOptions() Options {
	return Options{
		RangeFields:  []string{"price", "promotion"},
		DefaultLimit: pagination.DefaultLimit,
	}
}

// Features accumulates the query built by each stage. The first error stops
// later stages.
type Features struct {
	values url.Values
	opts   Options
	query  store.Query
	page   pagination.Params
	err    error
}

// New starts a pipeline over values. values is not modified.
func New(values url.Values, opts Options) *Features {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = pagination.DefaultLimit
	}
	return &Features{values: values, opts: opts}
}

// Filter merges base with the equality and range predicates of the request.
// base wins over a request parameter of the same name.
func (f *Features) Filter(base store.Filter) *Features {
	if f.err != nil {
		return f
	}
	filter := store.Filter{}
	consumed := map[string]struct{}{}

	for _, field := range f.opts.RangeFields {
		var r store.Range
		for _, op := range rangeOps {
			for _, key := range []string{field + "_" + op, field + "[" + op + "]"} {
				raw := f.values.Get(key)
				if _, ok := f.values[key]; !ok {
					continue
				}
				consumed[key] = struct{}{}
				v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
				if err != nil {
					f.err = fmt.Errorf("%s=%q: %w", key, raw, apperrors.ErrInvalidFilter)
					return f
				}
				setBound(&r, op, v)
			}
		}
		if !r.Empty() {
			filter[field] = r
		}
	}

	keys := make([]string, 0, len(f.values))
	for k := range f.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if _, ok := reserved[key]; ok {
			continue
		}
		if _, ok := consumed[key]; ok {
			continue
		}
		if _, ok := filter[key]; ok {
			continue
		}
		vals := f.values[key]
		switch len(vals) {
		case 0:
		case 1:
			filter[key] = vals[0]
		default:
			in := make(store.In, len(vals))
			for i, v := range vals {
				in[i] = v
			}
			filter[key] = in
		}
	}

	for k, v := range base {
		filter[k] = v
	}
	f.query.Filter = filter
	return f
}

func setBound(r *store.Range, op string, v float64) {
	switch op {
	case "lt":
		r.Lt = &v
	case "lte":
		r.Lte = &v
	case "gt":
		r.Gt = &v
	case "gte":
		r.Gte = &v
	}
}

// Sort reads a comma separated sort list. A leading "-" sorts descending.
func (f *Features) Sort() *Features {
	if f.err != nil {
		return f
	}
	raw := f.values.Get("sort")
	if strings.TrimSpace(raw) == "" {
		raw = DefaultSort
	}
	f.query.Sort = ParseSort(raw)
	return f
}

// ParseSort parses "-a,b" into sort fields, skipping empty entries.
func ParseSort(raw string) []store.SortField {
	var out []store.SortField
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		desc := strings.HasPrefix(part, "-")
		part = strings.TrimPrefix(part, "-")
		if part == "" {
			continue
		}
		out = append(out, store.SortField{Field: part, Desc: desc})
	}
	return out
}

// LimitFields reads a comma separated projection. Fields prefixed with "-"
// are excluded; without a list the version key is hidden.
func (f *Features) LimitFields() *Features {
	if f.err != nil {
		return f
	}
	raw := strings.TrimSpace(f.values.Get("fields"))
	if raw == "" {
		f.query.Fields = store.Projection{Exclude: []string{domain.FieldVersion}}
		return f
	}
	var p store.Projection
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "" || part == "-":
		case strings.HasPrefix(part, "-"):
			p.Exclude = append(p.Exclude, part[1:])
		default:
			p.Include = append(p.Include, part)
		}
	}
	f.query.Fields = p
	return f
}

// Paginate applies page and limit.
func (f *Features) Paginate() *Features {
	if f.err != nil {
		return f
	}
	f.page = pagination.FromValues(f.values, f.opts.DefaultLimit)
	f.query.Skip = f.page.Skip
	f.query.Limit = f.page.Limit
	return f
}

// Result returns the built query and page window.
func (f *Features) Result() (store.Query, pagination.Params, error) {
	if f.err != nil {
		return store.Query{}, pagination.Params{}, apperrors.InvalidInput(f.err.Error())
	}
	return f.query, f.page, nil
}

// Build runs every stage in order.
func Build(values url.Values, base store.Filter, opts Options) (store.Query, pagination.Params, error) {
	return New(values, opts).Filter(base).Sort().LimitFields().Paginate().Result()
}
