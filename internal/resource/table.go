package resource

import (
	"context"
	"fmt"
	"strings"

	"github.com/tieenbuii/WEB-API/internal/domain"
	"github.com/tieenbuii/WEB-API/internal/store"
)

// TableRequest is a server-side grid request.
type TableRequest struct {
	Search string
	Start  int
	// Length of zero or less returns every remaining row.
	Length int
	Draw   int
}

// TableResult is the grid payload.
type TableResult struct {
	Draw            int               `json:"draw"`
	RecordsTotal    int64             `json:"recordsTotal"`
	RecordsFiltered int64             `json:"recordsFiltered"`
	Data            []domain.Document `json:"data"`
}

// Table returns one grid page, newest records first.
func (s *Service) Table(ctx context.Context, e domain.Entity, req TableRequest) (res TableResult, err error) {
	defer func() { operationsTotal.WithLabelValues(string(e), "table", outcome(err)).Inc() }()

	d, err := s.registry.Lookup(e)
	if err != nil {
		return TableResult{}, err
	}

	total, err := d.Accessor.Count(ctx, store.Filter{})
	if err != nil {
		return TableResult{}, fmt.Errorf("count %s: %w", e, err)
	}

	filter := store.Filter{}
	if term := strings.TrimSpace(req.Search); term != "" {
		filter[store.TextKey] = store.Text{Fields: d.SearchFields, Term: term}
	}
	filtered := total
	if len(filter) > 0 {
		if filtered, err = d.Accessor.Count(ctx, filter); err != nil {
			return TableResult{}, fmt.Errorf("count %s: %w", e, err)
		}
	}

	q := store.Query{
		Filter: filter,
		Sort:   []store.SortField{{Field: store.NaturalOrder, Desc: true}},
		Fields: store.Projection{Exclude: []string{domain.FieldVersion}},
		Skip:   max(req.Start, 0),
		Limit:  max(req.Length, 0),
	}
	docs, err := d.Accessor.Find(ctx, q)
	if err != nil {
		return TableResult{}, fmt.Errorf("table %s: %w", e, err)
	}
	for i := range docs {
		docs[i] = redact(d, docs[i])
	}
	if docs == nil {
		docs = []domain.Document{}
	}

	return TableResult{
		Draw:            req.Draw,
		RecordsTotal:    total,
		RecordsFiltered: filtered,
		Data:            docs,
	}, nil
}
