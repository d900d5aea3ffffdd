// Package memory is an in-process document backend used for development and
// tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tieenbuii/WEB-API/internal/domain"
	"github.com/tieenbuii/WEB-API/internal/store"
	apperrors "github.com/tieenbuii/WEB-API/pkg/errors"
)

// Backend holds named collections in memory.
type Backend struct {
	mu          sync.Mutex
	collections map[string]*Collection
}

var _ store.Backend = (*Backend)(nil)

// NewBackend creates an empty backend.
func NewBackend() *Backend {
	return &Backend{collections: make(map[string]*Collection)}
}

// Collection returns the named collection, creating it on first use.
func (b *Backend) Collection(name string) store.Accessor {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.collections[name]
	if !ok {
		c = &Collection{docs: make(map[string]*entry)}
		b.collections[name] = c
	}
	return c
}

func (b *Backend) Ping(context.Context) error  { return nil }
func (b *Backend) Close(context.Context) error { return nil }

type entry struct {
	doc domain.Document
	seq int64
}

// Collection is one thread-safe collection. Reads and writes copy documents
// so callers never share state with the store.
type Collection struct {
	mu   sync.RWMutex
	docs map[string]*entry
	seq  int64
}

var _ store.Accessor = (*Collection)(nil)

func (c *Collection) FindByID(ctx context.Context, id string) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.docs[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return e.doc.Clone(), nil
}

func (c *Collection) Find(ctx context.Context, q store.Query) ([]domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	matched := make([]*entry, 0, len(c.docs))
	for _, e := range c.docs {
		ok, err := Match(e.doc, q.Filter)
		if err != nil {
			c.mu.RUnlock()
			return nil, err
		}
		if ok {
			matched = append(matched, e)
		}
	}
	c.mu.RUnlock()

	sortEntries(matched, q.Sort)

	if q.Skip > 0 {
		if q.Skip >= len(matched) {
			matched = nil
		} else {
			matched = matched[q.Skip:]
		}
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	out := make([]domain.Document, 0, len(matched))
	for _, e := range matched {
		out = append(out, domain.Document(q.Fields.Apply(e.doc.Clone())))
	}
	return out, nil
}

func (c *Collection) Count(ctx context.Context, f store.Filter) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	var n int64
	for _, e := range c.docs {
		ok, err := Match(e.doc, f)
		if err != nil {
			return 0, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

func (c *Collection) Create(ctx context.Context, doc domain.Document) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d := store.PrepareCreate(doc)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.docs[d.ID()]; exists {
		return nil, fmt.Errorf("document %s: %w", d.ID(), apperrors.ErrConflict)
	}
	c.seq++
	c.docs[d.ID()] = &entry{doc: d, seq: c.seq}
	return d.Clone(), nil
}

func (c *Collection) FindByIDAndUpdate(ctx context.Context, id string, patch domain.Document, _ store.UpdateOptions) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := store.PreparePatch(patch)

	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.docs[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	e.doc = e.doc.Merge(p)
	return e.doc.Clone(), nil
}

func (c *Collection) FindByIDAndDelete(ctx context.Context, id string) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.docs[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	delete(c.docs, id)
	return e.doc, nil
}

func (c *Collection) Save(ctx context.Context, doc domain.Document, _ store.SaveOptions) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.docs[doc.ID()]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	d := store.PrepareSave(doc)
	d[domain.FieldCreatedAt] = e.doc[domain.FieldCreatedAt]
	d[domain.FieldUpdatedAt] = store.Now()
	e.doc = d
	return d.Clone(), nil
}

func (c *Collection) DeleteMany(ctx context.Context, ids []string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := c.docs[id]; ok {
			delete(c.docs, id)
			n++
		}
	}
	return n, nil
}

func (c *Collection) Increment(ctx context.Context, id, field string, delta int64) (domain.Document, error) {
	return c.adjust(ctx, id, field, delta, false)
}

func (c *Collection) DecrementIfAvailable(ctx context.Context, id, field string, n int64) (domain.Document, error) {
	return c.adjust(ctx, id, field, -n, true)
}

func (c *Collection) adjust(ctx context.Context, id, field string, delta int64, guard bool) (domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.docs[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}

	var current int64
	if raw, present := e.doc[field]; present && raw != nil {
		v, ok := domain.ToInt(raw)
		if !ok {
			return nil, fmt.Errorf("field %s of %s is not an integer: %w", field, id, apperrors.ErrInvalidInput)
		}
		current = v
	}
	if guard && current+delta < 0 {
		return nil, apperrors.ErrInsufficient
	}

	e.doc[field] = current + delta
	e.doc[domain.FieldUpdatedAt] = store.Now()
	return e.doc.Clone(), nil
}

func sortEntries(entries []*entry, spec []store.SortField) {
	sort.SliceStable(entries, func(i, j int) bool {
		for _, s := range spec {
			var cmp int
			if s.Field == store.NaturalOrder {
				cmp = compareInt(entries[i].seq, entries[j].seq)
			} else {
				cmp = Compare(entries[i].doc[s.Field], entries[j].doc[s.Field])
			}
			if cmp == 0 {
				continue
			}
			if s.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return entries[i].seq < entries[j].seq
	})
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
