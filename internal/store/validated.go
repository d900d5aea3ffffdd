package store

import (
	"context"

	"github.com/tieenbuii/WEB-API/internal/domain"
)

// ValidateFunc checks a whole document against a schema.
type ValidateFunc func(doc domain.Document) error

type validated struct {
	Accessor
	validate ValidateFunc
}

// Validated wraps acc so that Create always validates and
// FindByIDAndUpdate/Save validate when asked to.
func Validated(acc Accessor, fn ValidateFunc) Accessor {
	return &validated{Accessor: acc, validate: fn}
}

func (v *validated) Create(ctx context.Context, doc domain.Document) (domain.Document, error) {
	if err := v.validate(doc); err != nil {
		return nil, err
	}
	return v.Accessor.Create(ctx, doc)
}

func (v *validated) FindByIDAndUpdate(ctx context.Context, id string, patch domain.Document, opts UpdateOptions) (domain.Document, error) {
	if opts.Validate {
		current, err := v.Accessor.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := v.validate(current.Merge(patch)); err != nil {
			return nil, err
		}
	}
	return v.Accessor.FindByIDAndUpdate(ctx, id, patch, opts)
}

func (v *validated) Save(ctx context.Context, doc domain.Document, opts SaveOptions) (domain.Document, error) {
	if opts.Validate {
		if err := v.validate(doc); err != nil {
			return nil, err
		}
	}
	return v.Accessor.Save(ctx, doc, opts)
}
