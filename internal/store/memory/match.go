package memory

import (
	"fmt"
	"strings"
	"time"

	"github.com/tieenbuii/WEB-API/internal/domain"
	"github.com/tieenbuii/WEB-API/internal/store"
	apperrors "github.com/tieenbuii/WEB-API/pkg/errors"
)

// Match reports whether doc satisfies every predicate of f.
func Match(doc domain.Document, f store.Filter) (bool, error) {
	for field, want := range f {
		if field == store.TextKey {
			text, ok := want.(store.Text)
			if !ok {
				return false, fmt.Errorf("%s must be a text predicate: %w", store.TextKey, apperrors.ErrInvalidFilter)
			}
			if !matchText(doc, text) {
				return false, nil
			}
			continue
		}

		got, present := doc[field]
		switch w := want.(type) {
		case nil:
			if present && got != nil {
				return false, nil
			}
		case store.Range:
			v, ok := domain.ToFloat(got)
			if !ok || !w.Match(v) {
				return false, nil
			}
		case store.In:
			if !matchAny(got, w) {
				return false, nil
			}
		default:
			if !present || !matchValue(got, w) {
				return false, nil
			}
		}
	}
	return true, nil
}

func matchText(doc domain.Document, t store.Text) bool {
	term := strings.ToLower(t.Term)
	for _, f := range t.Fields {
		if s, ok := doc[f].(string); ok && strings.Contains(strings.ToLower(s), term) {
			return true
		}
	}
	return false
}

func matchAny(got any, want store.In) bool {
	for _, w := range want {
		if matchValue(got, w) {
			return true
		}
	}
	return false
}

// matchValue compares loosely so "5" from a query string matches a stored 5.
// A stored list matches when any element does.
func matchValue(got, want any) bool {
	if list, ok := got.([]any); ok {
		for _, item := range list {
			if matchValue(item, want) {
				return true
			}
		}
		return false
	}
	if id := domain.RefID(got); id != "" {
		got = id
	}
	gf, gok := domain.ToFloat(got)
	wf, wok := domain.ToFloat(want)
	if gok && wok {
		return gf == wf
	}
	return fmt.Sprint(got) == fmt.Sprint(want)
}

// Compare orders two stored values: nil first, then numbers, times and
// strings by their natural order.
func Compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	if af, ok := domain.ToFloat(a); ok {
		if bf, ok := domain.ToFloat(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Compare(bt)
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
