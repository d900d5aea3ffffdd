// Package store defines the Persistent Entity Accessor consumed by the
// resource layer, plus the query model shared by every backend.
package store

import (
	"context"

	"github.com/tieenbuii/WEB-API/internal/domain"
)

// UpdateOptions controls FindByIDAndUpdate. The updated document is always
// returned.
type UpdateOptions struct {
	// Validate runs the collection schema against the merged document.
	Validate bool
}

// SaveOptions controls Save.
type SaveOptions struct {
	Validate bool
}

// Accessor is the storage interface for one collection. Missing ids are
// reported as apperrors.ErrNotFound.
type Accessor interface {
	FindByID(ctx context.Context, id string) (domain.Document, error)
	Find(ctx context.Context, q Query) ([]domain.Document, error)
	Count(ctx context.Context, f Filter) (int64, error)
	Create(ctx context.Context, doc domain.Document) (domain.Document, error)
	FindByIDAndUpdate(ctx context.Context, id string, patch domain.Document, opts UpdateOptions) (domain.Document, error)
	FindByIDAndDelete(ctx context.Context, id string) (domain.Document, error)
	// Save replaces the stored document with doc and bumps its version.
	Save(ctx context.Context, doc domain.Document, opts SaveOptions) (domain.Document, error)
	DeleteMany(ctx context.Context, ids []string) (int64, error)
	// Increment adds delta to a numeric field unconditionally.
	Increment(ctx context.Context, id, field string, delta int64) (domain.Document, error)
	// DecrementIfAvailable subtracts n from field only when the current value
	// is at least n, as one atomic step. A shortfall is apperrors.ErrInsufficient.
	DecrementIfAvailable(ctx context.Context, id, field string, n int64) (domain.Document, error)
}

// Backend opens collections on one storage engine.
type Backend interface {
	Collection(name string) Accessor
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
