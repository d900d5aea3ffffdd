package resource

import (
	"context"
	"fmt"

	"github.com/tieenbuii/WEB-API/internal/domain"
	apperrors "github.com/tieenbuii/WEB-API/pkg/errors"
)

type orderHooks struct {
	inv *inventory
}

type orderKey struct{}

func (h *orderHooks) Bind(ctx context.Context, doc domain.Document) context.Context {
	return context.WithValue(ctx, orderKey{}, doc)
}

func (h *orderHooks) Bound(ctx context.Context) (domain.Document, bool) {
	d, ok := ctx.Value(orderKey{}).(domain.Document)
	return d, ok
}

// BeforeCreate validates the cart against inventory. With the atomic policy
// the stock is taken here and given back if the order is not stored.
func (h *orderHooks) BeforeCreate(ctx context.Context, op *Op) error {
	claimOwner(op)

	lines, err := domain.ParseLines(op.Body, "cart")
	if err != nil {
		return apperrors.InvalidInput(err.Error())
	}
	if len(lines) == 0 {
		return apperrors.InvalidInput("cart must contain at least one item")
	}

	var products []domain.Document
	if h.inv.policy == StockAtomic {
		docs, undo, err := h.inv.take(ctx, lines)
		if err != nil {
			return err
		}
		op.OnFailure(undo)
		products = docs
	} else {
		if products, err = h.inv.check(ctx, lines); err != nil {
			return err
		}
	}

	h.snapshot(op, lines, products)
	return nil
}

// AfterCreate deducts the cart under the legacy policy, after the order is
// stored.
func (h *orderHooks) AfterCreate(ctx context.Context, op *Op) error {
	if h.inv.policy != StockAtomic {
		lines, err := domain.ParseLines(op.Result, "cart")
		if err != nil {
			return fmt.Errorf("reread cart: %w", err)
		}
		if err := h.inv.adjust(ctx, lines, -1); err != nil {
			return fmt.Errorf("deduct inventory for order %s: %w", op.ID, err)
		}
	}
	op.Summary = map[string]any{
		domain.FieldID: op.Result.ID(),
		"totalPrice":   op.Result.Float("totalPrice"),
	}
	return nil
}

// snapshot rewrites the cart with product ids and the title and price seen
// when the order was placed, and fills totalPrice when it was not supplied.
func (h *orderHooks) snapshot(op *Op, lines []domain.Line, products []domain.Document) {
	raw, _ := op.Body["cart"].([]any)
	cart := make([]any, len(lines))
	var total float64
	for i, l := range lines {
		line := map[string]any{}
		if m, ok := raw[i].(map[string]any); ok {
			for k, v := range m {
				line[k] = v
			}
		}
		delete(line, domain.FieldID)
		line["product"] = l.Product
		line["quantity"] = l.Quantity

		p := products[i]
		title := l.Title
		if title == "" && p != nil {
			title = p.String("title")
		}
		line["title"] = title

		price, ok := domain.ToFloat(line["price"])
		if !ok && p != nil {
			price = p.Float("price")
		}
		line["price"] = price
		total += price * float64(l.Quantity)
		cart[i] = line
	}
	op.Body["cart"] = cart
	if _, ok := op.Body["totalPrice"]; !ok {
		op.Body["totalPrice"] = total
	}
	if _, ok := op.Body["status"]; !ok {
		op.Body["status"] = "pending"
	}
}

// claimOwner defaults the owner to the caller, and pins it to the caller
// unless the caller is privileged.
func claimOwner(op *Op) {
	if op.Body.Ref("user") == "" || !op.Caller.Privileged() {
		if op.Caller.ID != "" {
			op.Body["user"] = op.Caller.ID
		}
	}
}
