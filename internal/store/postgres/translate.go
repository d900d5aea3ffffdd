package postgres

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/tieenbuii/WEB-API/internal/domain"
	"github.com/tieenbuii/WEB-API/internal/store"
	apperrors "github.com/tieenbuii/WEB-API/pkg/errors"
)

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// columns holds document keys that live in dedicated table columns.
var columns = map[string]string{
	domain.FieldID:        "id",
	domain.FieldCreatedAt: "created_at",
	domain.FieldUpdatedAt: "updated_at",
	store.NaturalOrder:    "seq",
}

// where accumulates SQL predicates and their positional arguments.
type where struct {
	conditions []string
	args       []any
}

func (w *where) arg(v any) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *where) sql() string {
	return strings.Join(w.conditions, " AND ")
}

func checkField(field string) error {
	if !fieldPattern.MatchString(field) {
		return fmt.Errorf("field %q: %w", field, apperrors.ErrInvalidFilter)
	}
	return nil
}

func jsonText(field string) string {
	return fmt.Sprintf("doc->>'%s'", field)
}

// buildWhere translates a filter for one collection. Keys are visited in
// sorted order so the generated SQL is stable.
func buildWhere(collection string, f store.Filter) (*where, error) {
	w := &where{}
	w.conditions = append(w.conditions, "collection = "+w.arg(collection))

	fields := make([]string, 0, len(f))
	for k := range f {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	for _, field := range fields {
		want := f[field]
		if field == store.TextKey {
			text, ok := want.(store.Text)
			if !ok {
				return nil, fmt.Errorf("%s must be a text predicate: %w", store.TextKey, apperrors.ErrInvalidFilter)
			}
			if err := w.text(text); err != nil {
				return nil, err
			}
			continue
		}
		if err := checkField(field); err != nil {
			return nil, err
		}
		if field == domain.FieldID {
			switch v := want.(type) {
			case store.In:
				w.conditions = append(w.conditions, "id = ANY("+w.arg(texts(v))+")")
			default:
				w.conditions = append(w.conditions, "id = "+w.arg(fmt.Sprint(v)))
			}
			continue
		}

		switch v := want.(type) {
		case nil:
			w.conditions = append(w.conditions,
				fmt.Sprintf("(doc->'%[1]s' IS NULL OR doc->'%[1]s' = 'null'::jsonb)", field))
		case store.Range:
			w.rangeOn(field, v)
		case store.In:
			p := w.arg(texts(v))
			w.conditions = append(w.conditions,
				fmt.Sprintf("(%s = ANY(%s) OR doc->'%s' ?| %s)", jsonText(field), p, field, p))
		default:
			p := w.arg(fmt.Sprint(v))
			w.conditions = append(w.conditions,
				fmt.Sprintf("(%s = %s OR doc->'%s' @> jsonb_build_array(%s::text))", jsonText(field), p, field, p))
		}
	}
	return w, nil
}

func (w *where) rangeOn(field string, r store.Range) {
	expr := fmt.Sprintf("(CASE WHEN jsonb_typeof(doc->'%[1]s') = 'number' THEN (doc->>'%[1]s')::numeric END)", field)
	bounds := []struct {
		op  string
		val *float64
	}{{"<", r.Lt}, {"<=", r.Lte}, {">", r.Gt}, {">=", r.Gte}}
	for _, b := range bounds {
		if b.val != nil {
			w.conditions = append(w.conditions, fmt.Sprintf("%s %s %s", expr, b.op, w.arg(*b.val)))
		}
	}
}

func (w *where) text(t store.Text) error {
	if len(t.Fields) == 0 {
		return nil
	}
	p := w.arg("%" + escapeLike(t.Term) + "%")
	parts := make([]string, 0, len(t.Fields))
	for _, f := range t.Fields {
		if err := checkField(f); err != nil {
			return err
		}
		parts = append(parts, fmt.Sprintf("%s ILIKE %s", jsonText(f), p))
	}
	w.conditions = append(w.conditions, "("+strings.Join(parts, " OR ")+")")
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func texts(in store.In) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = fmt.Sprint(v)
	}
	return out
}

// orderBy renders the sort spec with seq as the final tie-breaker.
func orderBy(spec []store.SortField) (string, error) {
	parts := make([]string, 0, len(spec)+1)
	for _, s := range spec {
		expr, ok := columns[s.Field]
		if !ok {
			if err := checkField(s.Field); err != nil {
				return "", err
			}
			expr = fmt.Sprintf("doc->'%s'", s.Field)
		}
		dir := "ASC"
		if s.Desc {
			dir = "DESC"
		}
		parts = append(parts, expr+" "+dir)
	}
	parts = append(parts, "seq ASC")
	return strings.Join(parts, ", "), nil
}
