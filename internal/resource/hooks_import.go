package resource

import (
	"context"
	"fmt"

	"github.com/tieenbuii/WEB-API/internal/domain"
	"github.com/tieenbuii/WEB-API/internal/store"
	apperrors "github.com/tieenbuii/WEB-API/pkg/errors"
)

// importHooks keep product inventory in step with stock imports. imports is
// the unvalidated collection, used only to load the current invoice.
type importHooks struct {
	inv     *inventory
	imports store.Accessor
}

func (h *importHooks) BeforeCreate(ctx context.Context, op *Op) error {
	claimOwner(op)
	lines, err := invoiceLines(op.Body)
	if err != nil {
		return err
	}
	undo, err := h.inv.add(ctx, lines)
	if err != nil {
		return err
	}
	op.OnFailure(undo)
	return nil
}

// BeforeUpdate swaps the stored invoice for the new one when the patch
// replaces it.
func (h *importHooks) BeforeUpdate(ctx context.Context, op *Op) error {
	op.Validate = true
	if _, ok := op.Body["invoice"]; !ok {
		return nil
	}
	if err := h.load(ctx, op); err != nil {
		return err
	}

	oldLines, err := domain.ParseLines(op.Current, "invoice")
	if err != nil {
		return fmt.Errorf("stored invoice of import %s: %w", op.ID, err)
	}
	newLines, err := invoiceLines(op.Body)
	if err != nil {
		return err
	}

	undo, err := h.inv.replace(ctx, oldLines, newLines)
	if err != nil {
		return err
	}
	op.OnFailure(undo)
	return nil
}

// BeforeDelete reverses the invoice of an existing import.
func (h *importHooks) BeforeDelete(ctx context.Context, op *Op) error {
	if err := h.load(ctx, op); err != nil {
		return err
	}
	lines, err := domain.ParseLines(op.Current, "invoice")
	if err != nil {
		return fmt.Errorf("stored invoice of import %s: %w", op.ID, err)
	}
	undo, err := h.inv.reverse(ctx, lines)
	if err != nil {
		return err
	}
	op.OnFailure(undo)
	return nil
}

func (h *importHooks) load(ctx context.Context, op *Op) error {
	current, err := h.imports.FindByID(ctx, op.ID)
	if err != nil {
		return fmt.Errorf("load import %s: %w", op.ID, err)
	}
	op.Current = current
	return nil
}

func invoiceLines(body domain.Document) ([]domain.Line, error) {
	lines, err := domain.ParseLines(body, "invoice")
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}
	if len(lines) == 0 {
		return nil, apperrors.InvalidInput("invoice must contain at least one item")
	}
	return lines, nil
}
