package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/inventory"
	domain "github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/order"
)

type OrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{orders: make(map[string]*domain.Order)}
}

func (r *OrderRepository) Insert(ctx context.Context, order *domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if order == nil || order.ID == "" {
		return fmt.Errorf("order repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return domain.ErrConflict
	}
	r.orders[order.ID] = order.Clone()
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return order.Clone(), nil
}

func (r *OrderRepository) CompleteReconciliation(ctx context.Context, id string, at time.Time, result *inventory.Result) (*domain.Order, error) {
	return r.mutate(ctx, id, func(o *domain.Order) error {
		return o.MarkReconciled(at, result)
	})
}

func (r *OrderRepository) RecordReconciliationFailure(ctx context.Context, id string, reason string, result *inventory.Result) (*domain.Order, error) {
	return r.mutate(ctx, id, func(o *domain.Order) error {
		return o.RecordReconciliationFailure(reason, result)
	})
}

// ListUnreconciled returns reconcilable, unreconciled orders after the cursor,
// oldest first.
func (r *OrderRepository) ListUnreconciled(ctx context.Context, after domain.Cursor, limit int) ([]*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	out := make([]*domain.Order, 0)
	for _, o := range r.orders {
		if !o.InventoryReconciled && o.Reconcilable() && after.Precedes(o) {
			out = append(out, o.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// mutate applies fn to a working copy and stores it only when fn succeeds.
func (r *OrderRepository) mutate(ctx context.Context, id string, fn func(*domain.Order) error) (*domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	working := stored.Clone()
	if err := fn(working); err != nil {
		return stored.Clone(), err
	}
	r.orders[id] = working
	return working.Clone(), nil
}
