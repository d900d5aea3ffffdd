package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tieenbuii/WEB-API/internal/domain"
	"github.com/tieenbuii/WEB-API/internal/store"
	apperrors "github.com/tieenbuii/WEB-API/pkg/errors"
)

func ptr(f float64) *float64 { return &f }

func seed(t *testing.T, c store.Accessor, docs ...domain.Document) []string {
	t.Helper()
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		created, err := c.Create(context.Background(), d)
		require.NoError(t, err)
		ids = append(ids, created.ID())
	}
	return ids
}

func TestCollection_CreateAndFindByID(t *testing.T) {
	c := NewBackend().Collection("products")
	ctx := context.Background()

	created, err := c.Create(ctx, domain.Document{"title": "Áo"})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID())
	assert.Equal(t, int64(0), created[domain.FieldVersion])

	got, err := c.FindByID(ctx, created.ID())
	require.NoError(t, err)
	assert.Equal(t, created, got)

	got["title"] = "mutated"
	again, _ := c.FindByID(ctx, created.ID())
	assert.Equal(t, "Áo", again["title"])

	_, err = c.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCollection_CreateDuplicateID(t *testing.T) {
	c := NewBackend().Collection("products")
	seed(t, c, domain.Document{"id": "p1"})
	_, err := c.Create(context.Background(), domain.Document{"id": "p1"})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestCollection_FindFilterSortPage(t *testing.T) {
	c := NewBackend().Collection("products")
	seed(t, c,
		domain.Document{"title": "a", "price": float64(5)},
		domain.Document{"title": "b", "price": float64(20)},
		domain.Document{"title": "c", "price": float64(40)},
		domain.Document{"title": "d", "price": float64(60)},
	)
	ctx := context.Background()

	docs, err := c.Find(ctx, store.Query{
		Filter: store.Filter{"price": store.Range{Gte: ptr(10), Lte: ptr(50)}},
		Sort:   []store.SortField{{Field: "price", Desc: true}},
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "c", docs[0]["title"])
	assert.Equal(t, "b", docs[1]["title"])

	page, err := c.Find(ctx, store.Query{Sort: []store.SortField{{Field: "title"}}, Skip: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "b", page[0]["title"])
	assert.Equal(t, "c", page[1]["title"])

	beyond, err := c.Find(ctx, store.Query{Skip: 10, Limit: 2})
	require.NoError(t, err)
	assert.Empty(t, beyond)
}

func TestCollection_FindProjection(t *testing.T) {
	c := NewBackend().Collection("products")
	seed(t, c, domain.Document{"title": "a", "price": float64(5)})

	docs, err := c.Find(context.Background(), store.Query{Fields: store.Projection{Exclude: []string{domain.FieldVersion}}})
	require.NoError(t, err)
	assert.NotContains(t, docs[0], domain.FieldVersion)
	assert.Contains(t, docs[0], "price")

	docs, err = c.Find(context.Background(), store.Query{Fields: store.Projection{Include: []string{"title"}}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"id", "title"}, keys(docs[0]))
}

func keys(d domain.Document) []string {
	out := make([]string, 0, len(d))
	for k := range d {
		out = append(out, k)
	}
	return out
}

func TestCollection_NaturalOrder(t *testing.T) {
	c := NewBackend().Collection("users")
	seed(t, c, domain.Document{"name": "first"}, domain.Document{"name": "second"}, domain.Document{"name": "third"})

	docs, err := c.Find(context.Background(), store.Query{Sort: []store.SortField{{Field: store.NaturalOrder, Desc: true}}})
	require.NoError(t, err)
	assert.Equal(t, "third", docs[0]["name"])
	assert.Equal(t, "first", docs[2]["name"])
}

func TestCollection_Count(t *testing.T) {
	c := NewBackend().Collection("comments")
	seed(t, c,
		domain.Document{"product": "p1", "parent": nil, "content": "Hàng tốt"},
		domain.Document{"product": "p1", "parent": "x", "content": "Đồng ý"},
		domain.Document{"product": "p2", "content": "Giao nhanh"},
	)
	ctx := context.Background()

	n, err := c.Count(ctx, store.Filter{"product": "p1", "parent": nil})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = c.Count(ctx, store.Filter{store.TextKey: store.Text{Fields: []string{"content"}, Term: "GIAO"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = c.Count(ctx, store.Filter{"product": store.In{"p1", "p2"}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	_, err = c.Count(ctx, store.Filter{store.TextKey: "bad"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidFilter)
}

func TestCollection_UpdateDeleteSave(t *testing.T) {
	c := NewBackend().Collection("comments")
	ctx := context.Background()
	ids := seed(t, c, domain.Document{"content": "a", "children": []any{}}, domain.Document{"content": "b"})

	updated, err := c.FindByIDAndUpdate(ctx, ids[0], domain.Document{"content": "a2", "id": "hijack"}, store.UpdateOptions{})
	require.NoError(t, err)
	assert.Equal(t, "a2", updated["content"])
	assert.Equal(t, ids[0], updated.ID())

	_, err = c.FindByIDAndUpdate(ctx, "missing", domain.Document{}, store.UpdateOptions{})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	updated["children"] = []any{ids[1]}
	saved, err := c.Save(ctx, updated, store.SaveOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), saved[domain.FieldVersion])
	assert.Equal(t, []string{ids[1]}, saved.Strings("children"))

	deleted, err := c.FindByIDAndDelete(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, ids[0], deleted.ID())
	_, err = c.FindByIDAndDelete(ctx, ids[0])
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	n, err := c.DeleteMany(ctx, []string{ids[1], "missing"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestCollection_IncrementAndDecrement(t *testing.T) {
	c := NewBackend().Collection("products")
	ctx := context.Background()
	ids := seed(t, c, domain.Document{"inventory": float64(5)})

	doc, err := c.Increment(ctx, ids[0], "inventory", 3)
	require.NoError(t, err)
	inv, _ := doc.Int("inventory")
	assert.Equal(t, int64(8), inv)

	_, err = c.DecrementIfAvailable(ctx, ids[0], "inventory", 9)
	assert.ErrorIs(t, err, apperrors.ErrInsufficient)

	doc, err = c.DecrementIfAvailable(ctx, ids[0], "inventory", 8)
	require.NoError(t, err)
	inv, _ = doc.Int("inventory")
	assert.Equal(t, int64(0), inv)

	_, err = c.Increment(ctx, "missing", "inventory", 1)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCollection_ConcurrentDecrementNeverNegative(t *testing.T) {
	c := NewBackend().Collection("products")
	ctx := context.Background()
	ids := seed(t, c, domain.Document{"inventory": int64(10)})

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for range 25 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.DecrementIfAvailable(ctx, ids[0], "inventory", 1); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	doc, _ := c.FindByID(ctx, ids[0])
	inv, _ := doc.Int("inventory")
	assert.Equal(t, int64(0), inv)
}

func TestCompare(t *testing.T) {
	assert.Equal(t, -1, Compare(nil, 1))
	assert.Equal(t, 1, Compare(float64(10), int64(9)))
	assert.Equal(t, 0, Compare("5", float64(5)))
	assert.Equal(t, -1, Compare("apple", "banana"))
}
