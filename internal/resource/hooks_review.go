package resource

import (
	"context"
	"fmt"

	"github.com/tieenbuii/WEB-API/internal/domain"
	"github.com/tieenbuii/WEB-API/internal/store"
)

type reviewHooks struct {
	products store.Accessor
	reviews  store.Accessor
	ratings  RatingsDispatcher
}

func (h *reviewHooks) BeforeCreate(_ context.Context, op *Op) error {
	claimOwner(op)
	if op.Body.Ref("product") == "" && op.ParentID != "" {
		op.Body["product"] = op.ParentID
	}
	return nil
}

func (h *reviewHooks) AfterCreate(ctx context.Context, op *Op) error {
	return h.dispatch(ctx, op.Result.Ref("product"))
}

func (h *reviewHooks) BeforeUpdate(_ context.Context, op *Op) error {
	op.Body[domain.FieldUpdatedAt] = store.Now()
	return nil
}

func (h *reviewHooks) AfterUpdate(ctx context.Context, op *Op) error {
	return h.dispatch(ctx, op.Result.Ref("product"))
}

func (h *reviewHooks) AfterDelete(ctx context.Context, op *Op) error {
	return h.dispatch(ctx, op.Result.Ref("product"))
}

// SummarizeParent reports the product's stored rating aggregate and its
// review count.
func (h *reviewHooks) SummarizeParent(ctx context.Context, productID string) (domain.Document, int64, error) {
	p, err := h.products.FindByID(ctx, productID)
	if err != nil {
		return nil, 0, fmt.Errorf("load product %s: %w", productID, err)
	}
	total, err := h.reviews.Count(ctx, store.Filter{"product": productID})
	if err != nil {
		return nil, 0, fmt.Errorf("count reviews of %s: %w", productID, err)
	}

	agg := domain.Summarize(nil).Patch()
	for k := range agg {
		if v, ok := p[k]; ok {
			agg[k] = v
		}
	}
	return agg, total, nil
}

func (h *reviewHooks) dispatch(ctx context.Context, productID string) error {
	if h.ratings == nil || productID == "" {
		return nil
	}
	if err := h.ratings.Dispatch(ctx, productID); err != nil {
		return fmt.Errorf("recompute ratings of %s: %w", productID, err)
	}
	return nil
}
