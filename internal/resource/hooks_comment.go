package resource

import (
	"context"
	"errors"
	"fmt"

	"github.com/tieenbuii/WEB-API/internal/domain"
	"github.com/tieenbuii/WEB-API/internal/store"
	apperrors "github.com/tieenbuii/WEB-API/pkg/errors"
)

// commentHooks maintain the two-way tree: a reply stores its parent id and
// the parent lists the reply under children. Tree edits are not guarded
// against concurrent writers.
type commentHooks struct {
	comments store.Accessor
}

// BaseFilter lists only top-level comments.
func (h *commentHooks) BaseFilter() store.Filter {
	return store.Filter{"parent": nil}
}

func (h *commentHooks) BeforeCreate(_ context.Context, op *Op) error {
	claimOwner(op)
	if op.Body.Ref("product") == "" && op.ParentID != "" {
		op.Body["product"] = op.ParentID
	}
	if _, ok := op.Body["parent"]; !ok {
		op.Body["parent"] = nil
	}
	op.Body["children"] = []any{}
	return nil
}

// AfterCreate appends the new comment to its parent's children. A missing
// parent is ignored.
func (h *commentHooks) AfterCreate(ctx context.Context, op *Op) error {
	parentID := op.Result.Ref("parent")
	if parentID == "" {
		return nil
	}
	parent, err := h.comments.FindByID(ctx, parentID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load parent comment %s: %w", parentID, err)
	}
	parent["children"] = append(toList(parent["children"]), op.Result.ID())
	if _, err := h.comments.Save(ctx, parent, store.SaveOptions{}); err != nil {
		return fmt.Errorf("attach comment %s to %s: %w", op.Result.ID(), parentID, err)
	}
	return nil
}

func (h *commentHooks) BeforeUpdate(_ context.Context, op *Op) error {
	op.Body[domain.FieldUpdatedAt] = store.Now()
	delete(op.Body, "children")
	return nil
}

// AfterDelete removes the direct replies and detaches the comment from its
// parent. Replies of replies are left in place.
func (h *commentHooks) AfterDelete(ctx context.Context, op *Op) error {
	if children := op.Result.Strings("children"); len(children) > 0 {
		if _, err := h.comments.DeleteMany(ctx, children); err != nil {
			return fmt.Errorf("delete replies of %s: %w", op.ID, err)
		}
	}

	parentID := op.Result.Ref("parent")
	if parentID == "" {
		return nil
	}
	parent, err := h.comments.FindByID(ctx, parentID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load parent comment %s: %w", parentID, err)
	}

	kept := []any{}
	for _, c := range toList(parent["children"]) {
		if domain.RefID(c) != op.ID {
			kept = append(kept, c)
		}
	}
	parent["children"] = kept
	if _, err := h.comments.Save(ctx, parent, store.SaveOptions{}); err != nil {
		return fmt.Errorf("detach comment %s from %s: %w", op.ID, parentID, err)
	}
	return nil
}

func toList(v any) []any {
	switch l := v.(type) {
	case []any:
		return l
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out
	}
	return []any{}
}
