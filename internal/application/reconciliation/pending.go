package reconciliation

import (
	"context"
	"errors"
	"sync"

	"github.com/Zhima-Mochi/openpayments-pos/app/internal/application"
	domain "github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/order"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/observability"
)

const useCaseReconcilePending = "order.reconcile_pending"

type ReconcilePendingInput struct {
	// Limit caps how many orders one sweep inspects; zero means all.
	Limit int
}

type ReconcilePendingResult struct {
	Inspected  int
	Reconciled int
	Failed     int
}

// ReconcilePendingUseCase refreshes unreconciled orders so that payments
// completed while nobody polled still update inventory. Limited sweeps resume
// after the last order inspected and wrap around, so orders that stay pending
// cannot starve newer ones.
type ReconcilePendingUseCase struct {
	repo    domain.Repository
	refresh application.UseCase[RefreshStatusInput, *StatusView]
	inst    application.Instruments

	mu     sync.Mutex
	cursor domain.Cursor
}

func NewReconcilePendingUseCase(
	repo domain.Repository,
	refresh application.UseCase[RefreshStatusInput, *StatusView],
	tel observability.Observability,
) *ReconcilePendingUseCase {
	return &ReconcilePendingUseCase{
		repo:    repo,
		refresh: refresh,
		inst:    application.NewInstruments(tel, reconciliationService),
	}
}

func (uc *ReconcilePendingUseCase) Execute(ctx context.Context, cmd ReconcilePendingInput) (_ *ReconcilePendingResult, err error) {
	ctx, run := uc.inst.Start(ctx, useCaseReconcilePending, "ReconcilePending")
	defer func() { run.End(ctx, err) }()

	uc.mu.Lock()
	defer uc.mu.Unlock()

	orders, err := uc.batch(ctx, cmd.Limit)
	if err != nil {
		run.Fail("REPO_LIST_FAILED")
		return nil, err
	}
	if cmd.Limit > 0 && len(orders) == cmd.Limit {
		uc.cursor = orders[len(orders)-1].Cursor()
	} else {
		uc.cursor = domain.Cursor{}
	}

	res := &ReconcilePendingResult{}
	var failures error
	for _, o := range orders {
		if ctx.Err() != nil {
			break
		}
		res.Inspected++
		view, refreshErr := uc.refresh.Execute(ctx, RefreshStatusInput{OrderID: o.ID})
		switch {
		case refreshErr != nil:
			res.Failed++
			failures = errors.Join(failures, refreshErr)
		case view.InventoryReconciled:
			res.Reconciled++
		}
	}

	run.With(
		observability.F("inspected", res.Inspected),
		observability.F("reconciled", res.Reconciled),
		observability.F("failed", res.Failed),
	)
	if failures != nil {
		// Individual failures are already reported by RefreshStatus.
		run.SetStatus("PARTIAL")
		run.With(observability.F("failures", failures.Error()))
	}
	return res, ctx.Err()
}

// batch lists up to limit orders after the cursor, continuing from the start
// when the end is reached.
func (uc *ReconcilePendingUseCase) batch(ctx context.Context, limit int) ([]*domain.Order, error) {
	start := uc.cursor
	if limit <= 0 {
		start = domain.Cursor{}
	}
	orders, err := uc.repo.ListUnreconciled(ctx, start, limit)
	if err != nil || start.IsZero() || len(orders) == limit {
		return orders, err
	}

	head, err := uc.repo.ListUnreconciled(ctx, domain.Cursor{}, limit-len(orders))
	if err != nil {
		return nil, err
	}
	for _, o := range head {
		if start.Precedes(o) {
			break
		}
		orders = append(orders, o)
	}
	return orders, nil
}
