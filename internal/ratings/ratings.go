// Package ratings keeps the review aggregate stored on each product in step
// with the product's reviews.
package ratings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tieenbuii/WEB-API/internal/domain"
	"github.com/tieenbuii/WEB-API/internal/store"
	apperrors "github.com/tieenbuii/WEB-API/pkg/errors"
)

var recomputations = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ratings_recomputations_total",
		Help: "Product rating recomputations by outcome.",
	},
	[]string{"outcome"},
)

// Recomputer rebuilds rating aggregates from the stored reviews.
type Recomputer struct {
	reviews  store.Accessor
	products store.Accessor
	logger   *slog.Logger
}

// NewRecomputer creates a recomputer over the review and product collections.
func NewRecomputer(reviews, products store.Accessor, logger *slog.Logger) *Recomputer {
	return &Recomputer{reviews: reviews, products: products, logger: logger}
}

// Recompute writes the mean, count and distribution of the product's reviews
// onto the product. A product that no longer exists is skipped.
func (r *Recomputer) Recompute(ctx context.Context, productID string) (domain.RatingSummary, error) {
	docs, err := r.reviews.Find(ctx, store.Query{
		Filter: store.Filter{"product": productID},
		Fields: store.Projection{Include: []string{"rating"}},
	})
	if err != nil {
		recomputations.WithLabelValues("error").Inc()
		return domain.RatingSummary{}, fmt.Errorf("load reviews of %s: %w", productID, err)
	}

	scores := make([]int64, 0, len(docs))
	for _, d := range docs {
		if v, ok := domain.ToInt(d["rating"]); ok {
			scores = append(scores, v)
		}
	}
	summary := domain.Summarize(scores)

	_, err = r.products.FindByIDAndUpdate(ctx, productID, summary.Patch(), store.UpdateOptions{})
	if errors.Is(err, apperrors.ErrNotFound) {
		recomputations.WithLabelValues("skipped").Inc()
		r.logger.DebugContext(ctx, "ratings target product is gone", slog.String("product_id", productID))
		return summary, nil
	}
	if err != nil {
		recomputations.WithLabelValues("error").Inc()
		return domain.RatingSummary{}, fmt.Errorf("store ratings of %s: %w", productID, err)
	}

	recomputations.WithLabelValues("ok").Inc()
	r.logger.DebugContext(ctx, "ratings recomputed",
		slog.String("product_id", productID),
		slog.Int64("quantity", summary.Quantity),
		slog.Float64("average", summary.Average),
	)
	return summary, nil
}

// RecomputeAll recomputes every product and returns how many were updated.
func (r *Recomputer) RecomputeAll(ctx context.Context) (int, error) {
	products, err := r.products.Find(ctx, store.Query{
		Sort:   []store.SortField{{Field: store.NaturalOrder}},
		Fields: store.Projection{Include: []string{domain.FieldID}},
	})
	if err != nil {
		return 0, fmt.Errorf("list products: %w", err)
	}
	for i, p := range products {
		if _, err := r.Recompute(ctx, p.ID()); err != nil {
			return i, err
		}
	}
	return len(products), nil
}

// SyncDispatcher recomputes inside the request that changed a review.
type SyncDispatcher struct {
	Recomputer *Recomputer
}

func (d SyncDispatcher) Dispatch(ctx context.Context, productID string) error {
	_, err := d.Recomputer.Recompute(ctx, productID)
	return err
}
