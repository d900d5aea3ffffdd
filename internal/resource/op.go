package resource

import (
	"context"

	"github.com/tieenbuii/WEB-API/internal/domain"
	"github.com/tieenbuii/WEB-API/internal/store"
)

// Request is the caller-supplied part of a write.
type Request struct {
	Caller domain.Caller
	// ParentID is the id from a nested route such as /products/{productId}/reviews.
	ParentID string
	ID       string
	Body     domain.Document
}

// Op carries one write through the entity hooks.
type Op struct {
	Entity   domain.Entity
	Caller   domain.Caller
	ParentID string
	ID       string
	// Body is the document or patch to persist. Before hooks may rewrite it.
	Body domain.Document
	// Current is the stored record, loaded by hooks that need it.
	Current domain.Document
	// Result is the persisted record.
	Result domain.Document
	// Summary replaces the full record in the response when set.
	Summary map[string]any
	// Validate applies to updates; hooks may turn it off.
	Validate bool

	undo []func(context.Context) error
}

// OnFailure registers a compensation that runs when the write is not
// persisted. Compensations run in reverse registration order.
func (op *Op) OnFailure(fn func(context.Context) error) {
	op.undo = append(op.undo, fn)
}

// Hooks are optional; Service type-asserts a descriptor's Hooks value
// against each interface.

type BeforeCreator interface {
	BeforeCreate(ctx context.Context, op *Op) error
}

type AfterCreator interface {
	AfterCreate(ctx context.Context, op *Op) error
}

type BeforeUpdater interface {
	BeforeUpdate(ctx context.Context, op *Op) error
}

type AfterUpdater interface {
	AfterUpdate(ctx context.Context, op *Op) error
}

type BeforeDeleter interface {
	BeforeDelete(ctx context.Context, op *Op) error
}

type AfterDeleter interface {
	AfterDelete(ctx context.Context, op *Op) error
}

// Permitter overrides the default ownership rule of the permission gate.
type Permitter interface {
	Permit(caller domain.Caller, doc domain.Document) bool
}

// ContextBinder attaches a record that passed the permission gate to the
// request context. Get serves a bound record without loading it again.
type ContextBinder interface {
	Bind(ctx context.Context, doc domain.Document) context.Context
	Bound(ctx context.Context) (domain.Document, bool)
}

// Redactor removes fields that must never leave the service.
type Redactor interface {
	Redact(doc domain.Document) domain.Document
}

// BaseFilterer adds entity-wide predicates to every listing.
type BaseFilterer interface {
	BaseFilter() store.Filter
}

// ParentSummarizer reports aggregates of the parent record for a nested
// listing, together with the number of children it has.
type ParentSummarizer interface {
	SummarizeParent(ctx context.Context, parentID string) (domain.Document, int64, error)
}

// Publisher emits a domain event after a committed write.
type Publisher interface {
	Publish(ctx context.Context, entity domain.Entity, action string, doc domain.Document) error
}

// RatingsDispatcher schedules a recomputation of a product's rating aggregate.
type RatingsDispatcher interface {
	Dispatch(ctx context.Context, productID string) error
}

// Event actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)
