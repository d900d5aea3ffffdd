package resource

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/tieenbuii/WEB-API/internal/domain"
	"github.com/tieenbuii/WEB-API/internal/store"
	apperrors "github.com/tieenbuii/WEB-API/pkg/errors"
)

// Populate replaces a reference field with the referenced record.
type Populate struct {
	Field  string
	Entity domain.Entity
	Fields store.Projection
}

// Descriptor binds an entity to its accessor and behavior.
type Descriptor struct {
	Entity   domain.Entity
	Accessor store.Accessor
	Hooks    any
	// Populate is applied by Get.
	Populate []Populate
	// ListPopulate is applied to every record returned by List.
	ListPopulate []Populate
	// SearchFields are matched by the table search box.
	SearchFields []string
	// ParentField receives the id of a nested route.
	ParentField string
}

// Registry maps entities to descriptors.
type Registry struct {
	mu    sync.RWMutex
	descs map[domain.Entity]*Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{descs: make(map[domain.Entity]*Descriptor)}
}

// Register adds or replaces d.
func (r *Registry) Register(d Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.descs[d.Entity] = &d
}

// Lookup returns the descriptor for e.
func (r *Registry) Lookup(e domain.Entity) (*Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descs[e]
	if !ok {
		return nil, fmt.Errorf("entity %q is not registered: %w", e, apperrors.ErrNotFound)
	}
	return d, nil
}

// Options configures the default registry.
type Options struct {
	StockPolicy StockPolicy
	Ratings     RatingsDispatcher
	// BcryptCost of zero uses bcrypt.DefaultCost.
	BcryptCost int
	Logger     *slog.Logger
}

// Validating wraps the collection of e so that writes are checked against
// the entity schema.
func Validating(backend store.Backend, e domain.Entity) store.Accessor {
	return store.Validated(backend.Collection(e.Collection()), func(d domain.Document) error {
		return domain.Validate(e, d)
	})
}

var userSummary = store.Projection{Include: []string{"name", "email", "role"}}

// NewDefaultRegistry registers every entity on backend.
func NewDefaultRegistry(backend store.Backend, opts Options) *Registry {
	if opts.StockPolicy == "" {
		opts.StockPolicy = StockAtomic
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	products := Validating(backend, domain.Product)
	comments := Validating(backend, domain.Comment)
	reviews := Validating(backend, domain.Review)
	inv := &inventory{products: products, policy: opts.StockPolicy, logger: opts.Logger}

	r := NewRegistry()
	r.Register(Descriptor{
		Entity:       domain.Product,
		Accessor:     products,
		Hooks:        productHooks{},
		SearchFields: []string{"title", "description"},
		Populate: []Populate{
			{Field: "createdBy", Entity: domain.User, Fields: userSummary},
			{Field: "updatedBy", Entity: domain.User, Fields: userSummary},
		},
	})
	r.Register(Descriptor{
		Entity:       domain.Order,
		Accessor:     Validating(backend, domain.Order),
		Hooks:        &orderHooks{inv: inv},
		SearchFields: []string{"status", "address", "phone"},
		Populate:     []Populate{{Field: "user", Entity: domain.User, Fields: userSummary}},
		ListPopulate: []Populate{{Field: "user", Entity: domain.User, Fields: userSummary}},
	})
	r.Register(Descriptor{
		Entity:       domain.Import,
		Accessor:     Validating(backend, domain.Import),
		Hooks:        &importHooks{inv: inv, imports: backend.Collection(domain.Import.Collection())},
		SearchFields: []string{"user"},
		Populate:     []Populate{{Field: "user", Entity: domain.User, Fields: userSummary}},
	})
	r.Register(Descriptor{
		Entity:       domain.Review,
		Accessor:     reviews,
		Hooks:        &reviewHooks{products: products, reviews: reviews, ratings: opts.Ratings},
		SearchFields: []string{"review"},
		ParentField:  "product",
		Populate:     []Populate{{Field: "user", Entity: domain.User, Fields: userSummary}},
		ListPopulate: []Populate{{Field: "user", Entity: domain.User, Fields: userSummary}},
	})
	r.Register(Descriptor{
		Entity:       domain.Comment,
		Accessor:     comments,
		Hooks:        &commentHooks{comments: comments},
		SearchFields: []string{"content"},
		ParentField:  "product",
		Populate: []Populate{
			{Field: "user", Entity: domain.User, Fields: userSummary},
			{Field: "children", Entity: domain.Comment},
		},
		ListPopulate: []Populate{{Field: "user", Entity: domain.User, Fields: userSummary}},
	})
	r.Register(Descriptor{
		Entity:       domain.User,
		Accessor:     Validating(backend, domain.User),
		Hooks:        &userHooks{cost: opts.BcryptCost},
		SearchFields: []string{"name", "email"},
	})
	return r
}
