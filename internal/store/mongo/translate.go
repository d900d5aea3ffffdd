package mongo

import (
	"regexp"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tieenbuii/WEB-API/internal/domain"
	"github.com/tieenbuii/WEB-API/internal/store"
	apperrors "github.com/tieenbuii/WEB-API/pkg/errors"
)

// toFilter translates a store filter into a Mongo query document.
func toFilter(f store.Filter) (bson.M, error) {
	out := bson.M{}
	for field, want := range f {
		if field == store.TextKey {
			text, ok := want.(store.Text)
			if !ok {
				return nil, apperrors.ErrInvalidFilter
			}
			if or := textClause(text); len(or) > 0 {
				out["$or"] = or
			}
			continue
		}

		key := storedKey(field)
		switch w := want.(type) {
		case nil:
			out[key] = nil
		case store.Range:
			out[key] = rangeClause(w)
		case store.In:
			values := make(bson.A, 0, len(w)*2)
			for _, v := range w {
				values = append(values, variants(v)...)
			}
			out[key] = bson.M{"$in": values}
		default:
			if vs := variants(w); len(vs) > 1 {
				out[key] = bson.M{"$in": vs}
			} else {
				out[key] = w
			}
		}
	}
	return out, nil
}

// variants lets "5" from a query string also match a stored number.
func variants(v any) bson.A {
	s, ok := v.(string)
	if !ok {
		return bson.A{v}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return bson.A{s, f}
	}
	return bson.A{s}
}

func rangeClause(r store.Range) bson.M {
	m := bson.M{}
	if r.Lt != nil {
		m["$lt"] = *r.Lt
	}
	if r.Lte != nil {
		m["$lte"] = *r.Lte
	}
	if r.Gt != nil {
		m["$gt"] = *r.Gt
	}
	if r.Gte != nil {
		m["$gte"] = *r.Gte
	}
	return m
}

func textClause(t store.Text) bson.A {
	pattern := regexp.QuoteMeta(t.Term)
	or := make(bson.A, 0, len(t.Fields))
	for _, f := range t.Fields {
		or = append(or, bson.M{f: primitive.Regex{Pattern: pattern, Options: "i"}})
	}
	return or
}

// toSort renders a sort spec. Natural order cannot be combined with other
// keys, so it replaces the _id tie-breaker.
func toSort(spec []store.SortField) bson.D {
	out := make(bson.D, 0, len(spec)+1)
	natural := false
	for _, s := range spec {
		dir := 1
		if s.Desc {
			dir = -1
		}
		if s.Field == store.NaturalOrder {
			natural = true
		}
		out = append(out, bson.E{Key: storedKey(s.Field), Value: dir})
	}
	if !natural {
		out = append(out, bson.E{Key: "_id", Value: 1})
	}
	return out
}

func storedKey(field string) string {
	if field == domain.FieldID {
		return "_id"
	}
	return field
}

// toStored converts a document for insertion.
func toStored(d domain.Document) bson.M {
	out := bson.M{}
	for k, v := range d {
		if k == domain.FieldID {
			out["_id"] = v
			continue
		}
		out[k] = v
	}
	return out
}

// fromStored converts a decoded Mongo document into plain Go values.
func fromStored(m bson.M) domain.Document {
	doc := domain.Document{}
	for k, v := range m {
		if k == "_id" {
			k = domain.FieldID
		}
		doc[k] = normalize(v)
	}
	return doc
}

func normalize(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case primitive.DateTime:
		return t.Time().UTC()
	case time.Time:
		return t.UTC()
	case int32:
		return int64(t)
	case primitive.ObjectID:
		return t.Hex()
	}
	return v
}
