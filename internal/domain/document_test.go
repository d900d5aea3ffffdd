package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocument_Accessors(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	d := Document{
		"id":        "p1",
		"title":     "Áo thun",
		"inventory": float64(5),
		"price":     "12.5",
		"user":      map[string]any{"id": "u1", "name": "An"},
		"children":  []any{"c1", map[string]any{"_id": "c2"}},
		"createdAt": now.Format(time.RFC3339Nano),
	}

	assert.Equal(t, "p1", d.ID())
	inv, ok := d.Int("inventory")
	require.True(t, ok)
	assert.Equal(t, int64(5), inv)
	assert.Equal(t, 12.5, d.Float("price"))
	assert.Equal(t, "u1", d.Ref("user"))
	assert.Equal(t, []string{"c1", "c2"}, d.Strings("children"))

	created, ok := d.Time("createdAt")
	require.True(t, ok)
	assert.True(t, created.Equal(now))
}

func TestToInt_RejectsFractions(t *testing.T) {
	_, ok := ToInt(2.5)
	assert.False(t, ok)
	v, ok := ToInt(int32(7))
	assert.True(t, ok)
	assert.Equal(t, int64(7), v)
}

func TestDocument_CloneIsDeep(t *testing.T) {
	d := Document{"cart": []any{map[string]any{"quantity": 1}}}
	c := d.Clone()
	c["cart"].([]any)[0].(map[string]any)["quantity"] = 9

	assert.Equal(t, 1, d["cart"].([]any)[0].(map[string]any)["quantity"])
}

func TestDocument_MergeAndWithout(t *testing.T) {
	d := Document{"a": 1, "b": 2}
	m := d.Merge(Document{"b": 3, "c": 4})
	assert.Equal(t, Document{"a": 1, "b": 3, "c": 4}, m)
	assert.Equal(t, Document{"a": 1, "b": 2}, d)
	assert.Equal(t, Document{"a": 1}, d.Without("b"))
}

func TestParseEntity(t *testing.T) {
	e, err := ParseEntity("products")
	require.NoError(t, err)
	assert.Equal(t, Product, e)
	assert.Equal(t, "comments", Comment.Collection())

	_, err = ParseEntity("carts")
	assert.Error(t, err)
}

func TestCaller_Privileged(t *testing.T) {
	assert.False(t, Caller{ID: "u", Role: RoleUser}.Privileged())
	assert.True(t, Caller{ID: "u", Role: RoleEmployee}.Privileged())
	assert.True(t, Caller{ID: "u", Role: RoleAdmin}.Privileged())
	assert.False(t, Caller{}.Privileged())
	assert.False(t, Caller{ID: "u", Role: "customer"}.Privileged())
	assert.False(t, Caller{ID: "u", Role: "Admin"}.Privileged())
}
