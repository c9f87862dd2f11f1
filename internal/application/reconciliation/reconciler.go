package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/openpayments-pos/app/internal/application"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/inventory"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/order"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/observability"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/observability/logctx"
)

// Reconciler decrements stock for the lines of a paid order. It never stops at
// a failing line.
type Reconciler struct {
	gateway inventory.Gateway
	ext     *application.External
	log     observability.Logger
	lines   map[inventory.LineStatus]observability.BoundCounter // inventory_reconciliation_lines_total{result}
}

func NewReconciler(gateway inventory.Gateway, timeout time.Duration, tel observability.Observability) *Reconciler {
	tel = observability.OrNop(tel)
	return &Reconciler{
		gateway: gateway,
		ext:     application.NewExternal(application.PeerInventory, timeout, tel),
		log:     tel.Logger().With(observability.F("component", "inventory_reconciler")),
		lines:   bindLineCounters(tel.Metrics().Counter(observability.MReconciliationLines)),
	}
}

func bindLineCounters(c observability.Counter) map[inventory.LineStatus]observability.BoundCounter {
	out := make(map[inventory.LineStatus]observability.BoundCounter, 3)
	for _, s := range []inventory.LineStatus{inventory.LineSucceeded, inventory.LineFailed, inventory.LineSkipped} {
		out[s] = c.Bind(observability.L("result", string(s)))
	}
	return out
}

// Reconcile processes every line and reports per-line outcomes.
func (r *Reconciler) Reconcile(ctx context.Context, lines []order.Line) *inventory.Result {
	logger := logctx.FromOr(ctx, r.log)
	result := &inventory.Result{Lines: make([]inventory.LineResult, 0, len(lines))}

	for _, l := range lines {
		lr := r.reconcileLine(ctx, l)
		result.Add(lr)
		r.lines[lr.Status].Add(1)

		if lr.Status == inventory.LineFailed {
			logger.Warn("inventory_line_failed",
				observability.F("product_id", lr.ProductID),
				observability.F("quantity", lr.Quantity),
				observability.F("reason", lr.Reason),
				observability.F("error", lr.Error),
			)
		}
	}
	return result
}

func (r *Reconciler) reconcileLine(ctx context.Context, l order.Line) inventory.LineResult {
	lr := inventory.LineResult{ProductID: l.ProductID, Name: l.Name, Quantity: l.Quantity}

	if l.ProductID == "" {
		lr.Status, lr.Reason = inventory.LineSkipped, inventory.ReasonMissingProductID
		return lr
	}
	if l.Quantity <= 0 {
		lr.Status, lr.Reason = inventory.LineSkipped, inventory.ReasonInvalidQuantity
		return lr
	}

	stock, err := application.Call(ctx, r.ext, "stock.get", func(ctx context.Context) (int, error) {
		return r.gateway.Stock(ctx, l.ProductID)
	})
	if err != nil {
		return failed(lr, err)
	}
	if stock < l.Quantity {
		lr.StockBefore = &stock
		return failed(lr, inventory.ErrInsufficientStock)
	}

	remaining, err := application.Call(ctx, r.ext, "stock.decrement", func(ctx context.Context) (int, error) {
		return r.gateway.Decrement(ctx, l.ProductID, l.Quantity)
	})
	if err != nil {
		lr.StockBefore = &stock
		return failed(lr, err)
	}

	before := remaining + l.Quantity
	lr.Status = inventory.LineSucceeded
	lr.StockBefore = &before
	lr.StockAfter = &remaining
	return lr
}

// failed classifies err. Anything that is not a stock outcome counts as a
// gateway failure and is reported as wrapping inventory.ErrGateway.
func failed(lr inventory.LineResult, err error) inventory.LineResult {
	lr.Status = inventory.LineFailed
	switch {
	case errors.Is(err, inventory.ErrNotFound):
		lr.Reason = inventory.ReasonNotFound
	case errors.Is(err, inventory.ErrInsufficientStock):
		lr.Reason = inventory.ReasonInsufficientStock
	default:
		if !errors.Is(err, inventory.ErrGateway) {
			err = fmt.Errorf("%w: %w", inventory.ErrGateway, err)
		}
		lr.Reason = inventory.ReasonGatewayError
	}
	lr.Error = err.Error()
	return lr
}
