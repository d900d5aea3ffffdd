package resource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tieenbuii/WEB-API/internal/domain"
	"github.com/tieenbuii/WEB-API/internal/store"
	apperrors "github.com/tieenbuii/WEB-API/pkg/errors"
)

// StockPolicy selects how stock-consuming writes guard inventory.
type StockPolicy string

const (
	// StockLegacy reads every line, then deducts in separate writes.
	// Concurrent orders can both pass the check and drive inventory negative.
	StockLegacy StockPolicy = "legacy"
	// StockAtomic deducts each line with a conditional decrement and
	// compensates on the first shortfall.
	StockAtomic StockPolicy = "atomic"
)

// ParseStockPolicy validates a policy name.
func ParseStockPolicy(s string) (StockPolicy, error) {
	switch p := StockPolicy(s); p {
	case StockLegacy, StockAtomic:
		return p, nil
	}
	return "", fmt.Errorf("unknown stock policy %q", s)
}

const fieldInventory = "inventory"

type inventory struct {
	products store.Accessor
	policy   StockPolicy
	logger   *slog.Logger
}

// check loads the product of every line and fails on the first one whose
// inventory cannot cover the quantity. The loaded products are returned in
// line order.
func (inv *inventory) check(ctx context.Context, lines []domain.Line) ([]domain.Document, error) {
	docs := make([]domain.Document, len(lines))
	for i, l := range lines {
		p, err := inv.products.FindByID(ctx, l.Product)
		if err != nil {
			return nil, inv.lineError(l, err)
		}
		have, _ := p.Int(fieldInventory)
		if l.Quantity > have {
			return nil, inv.shortfall(ctx, l, p)
		}
		docs[i] = p
	}
	return docs, nil
}

// take decrements every line atomically. On failure the lines already taken
// are restored. The returned undo restores all of them.
func (inv *inventory) take(ctx context.Context, lines []domain.Line) ([]domain.Document, func(context.Context) error, error) {
	docs := make([]domain.Document, 0, len(lines))
	taken := make([]domain.Line, 0, len(lines))
	for _, l := range lines {
		p, err := inv.products.DecrementIfAvailable(ctx, l.Product, fieldInventory, l.Quantity)
		if err != nil {
			inv.restore(ctx, taken)
			if errors.Is(err, apperrors.ErrInsufficient) {
				current, _ := inv.products.FindByID(ctx, l.Product)
				return nil, nil, inv.shortfall(ctx, l, current)
			}
			return nil, nil, inv.lineError(l, err)
		}
		taken = append(taken, l)
		docs = append(docs, p)
	}
	return docs, func(ctx context.Context) error { return inv.adjust(ctx, taken, +1) }, nil
}

// reverse withdraws the quantities of lines previously added, following
// the configured policy. The returned undo adds them back.
func (inv *inventory) reverse(ctx context.Context, lines []domain.Line) (func(context.Context) error, error) {
	if inv.policy == StockAtomic {
		_, undo, err := inv.take(ctx, lines)
		return undo, err
	}
	if err := inv.adjustEach(ctx, lines, -1); err != nil {
		return nil, err
	}
	return func(ctx context.Context) error { return inv.adjust(ctx, lines, +1) }, nil
}

// replace withdraws the quantities of oldLines and adds those of newLines.
// The atomic policy nets the two per product first, so only a product whose
// quantity went down is withdrawn, and conditionally. The returned undo puts
// the previous quantities back.
func (inv *inventory) replace(ctx context.Context, oldLines, newLines []domain.Line) (func(context.Context) error, error) {
	withdraw, deposit := oldLines, newLines
	if inv.policy == StockAtomic {
		withdraw, deposit = netLines(oldLines, newLines)
	}

	undoWithdraw, err := inv.reverse(ctx, withdraw)
	if err != nil {
		return nil, err
	}
	undoDeposit, err := inv.add(ctx, deposit)
	if err != nil {
		if undoErr := undoWithdraw(context.WithoutCancel(ctx)); undoErr != nil {
			inv.logger.ErrorContext(ctx, "failed to undo inventory withdrawal", slog.String("error", undoErr.Error()))
		}
		return nil, err
	}
	return func(ctx context.Context) error {
		return errors.Join(undoDeposit(ctx), undoWithdraw(ctx))
	}, nil
}

// netLines folds the change from oldLines to newLines into one line per
// product, split by direction. Products keep their first-seen order.
func netLines(oldLines, newLines []domain.Line) (withdraw, deposit []domain.Line) {
	net := make(map[string]int64)
	titles := make(map[string]string)
	var order []string
	tally := func(lines []domain.Line, sign int64) {
		for _, l := range lines {
			if _, seen := net[l.Product]; !seen {
				order = append(order, l.Product)
			}
			net[l.Product] += sign * l.Quantity
			if titles[l.Product] == "" {
				titles[l.Product] = l.Title
			}
		}
	}
	tally(oldLines, -1)
	tally(newLines, +1)

	for _, id := range order {
		switch n := net[id]; {
		case n < 0:
			withdraw = append(withdraw, domain.Line{Product: id, Quantity: -n, Title: titles[id]})
		case n > 0:
			deposit = append(deposit, domain.Line{Product: id, Quantity: n, Title: titles[id]})
		}
	}
	return withdraw, deposit
}

// add increments every line. On failure the lines already added are
// withdrawn again. The returned undo withdraws all of them.
func (inv *inventory) add(ctx context.Context, lines []domain.Line) (func(context.Context) error, error) {
	if err := inv.adjustEach(ctx, lines, +1); err != nil {
		return nil, err
	}
	return func(ctx context.Context) error { return inv.adjust(ctx, lines, -1) }, nil
}

// adjustEach applies sign*quantity to each line, undoing earlier lines when
// one fails.
func (inv *inventory) adjustEach(ctx context.Context, lines []domain.Line, sign int64) error {
	for i, l := range lines {
		if _, err := inv.products.Increment(ctx, l.Product, fieldInventory, sign*l.Quantity); err != nil {
			if undoErr := inv.adjust(ctx, lines[:i], -sign); undoErr != nil {
				inv.logger.ErrorContext(ctx, "failed to undo inventory adjustment", slog.String("error", undoErr.Error()))
			}
			return inv.lineError(l, err)
		}
	}
	return nil
}

// adjust applies sign*quantity to every line unconditionally and reports
// the first failure after trying them all.
func (inv *inventory) adjust(ctx context.Context, lines []domain.Line, sign int64) error {
	var first error
	for _, l := range lines {
		if _, err := inv.products.Increment(ctx, l.Product, fieldInventory, sign*l.Quantity); err != nil {
			compensationFailures.Inc()
			if first == nil {
				first = fmt.Errorf("adjust inventory of %s: %w", l.Product, err)
			}
		}
	}
	return first
}

func (inv *inventory) restore(ctx context.Context, taken []domain.Line) {
	if err := inv.adjust(ctx, taken, +1); err != nil {
		inv.logger.ErrorContext(ctx, "failed to restore inventory",
			slog.Int("lines", len(taken)),
			slog.String("error", err.Error()),
		)
	}
}

func (inv *inventory) shortfall(ctx context.Context, l domain.Line, product domain.Document) error {
	if l.Title == "" && product != nil {
		l.Title = product.String("title")
	}
	stockRejections.WithLabelValues(string(inv.policy)).Inc()
	inv.logger.InfoContext(ctx, "insufficient stock",
		slog.String("product_id", l.Product),
		slog.Int64("requested", l.Quantity),
		slog.String("policy", string(inv.policy)),
	)
	return apperrors.InsufficientStock(l.DisplayTitle())
}

func (inv *inventory) lineError(l domain.Line, err error) error {
	if errors.Is(err, apperrors.ErrNotFound) {
		return apperrors.InvalidInput(fmt.Sprintf("product %s does not exist", l.Product))
	}
	return fmt.Errorf("inventory of %s: %w", l.Product, err)
}
