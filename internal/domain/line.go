package domain

import (
	"fmt"
	"unicode/utf8"
)

// Line is one (product, quantity) entry of an order cart or import invoice.
type Line struct {
	Product  string
	Quantity int64
	Title    string
}

// ParseLines reads the list under key. A line references its product either
// as "product" (id or expanded document) or as "id".
func ParseLines(d Document, key string) ([]Line, error) {
	raw, ok := d[key].([]any)
	if !ok {
		if _, present := d[key]; present {
			return nil, fmt.Errorf("%s must be a list", key)
		}
		return nil, nil
	}

	lines := make([]Line, 0, len(raw))
	for i, item := range raw {
		m, ok := asMap(item)
		if !ok {
			return nil, fmt.Errorf("%s[%d] must be an object", key, i)
		}
		line := Line{Product: RefID(m["product"])}
		if line.Product == "" {
			line.Product, _ = m["id"].(string)
		}
		if line.Product == "" {
			return nil, fmt.Errorf("%s[%d].product is required", key, i)
		}
		qty, ok := ToInt(m["quantity"])
		if !ok || qty <= 0 {
			return nil, fmt.Errorf("%s[%d].quantity must be a positive integer", key, i)
		}
		line.Quantity = qty

		line.Title, _ = m["title"].(string)
		if line.Title == "" {
			if p, ok := asMap(m["product"]); ok {
				line.Title, _ = p["title"].(string)
			}
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// DisplayTitle returns the title cut to 40 characters, or the product id
// when no title is known.
func (l Line) DisplayTitle() string {
	t := l.Title
	if t == "" {
		return l.Product
	}
	if utf8.RuneCountInString(t) > 40 {
		return string([]rune(t)[:40])
	}
	return t
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case Document:
		return m, true
	}
	return nil, false
}
