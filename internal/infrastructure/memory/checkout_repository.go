package memory

import (
	"context"
	"fmt"
	"sync"

	domain "github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/checkout"
)

type CheckoutRepository struct {
	mu        sync.RWMutex
	checkouts map[string]*domain.Checkout
}

func NewCheckoutRepository() *CheckoutRepository {
	return &CheckoutRepository{checkouts: make(map[string]*domain.Checkout)}
}

func (r *CheckoutRepository) Insert(ctx context.Context, c *domain.Checkout) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c == nil || c.ID == "" {
		return fmt.Errorf("checkout repository: id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.checkouts[c.ID]; exists {
		return domain.ErrConflict
	}
	r.checkouts[c.ID] = c.Clone()
	return nil
}

func (r *CheckoutRepository) Get(ctx context.Context, id string) (*domain.Checkout, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.checkouts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c.Clone(), nil
}

func (r *CheckoutRepository) MarkContinuationConsumed(ctx context.Context, id string) (*domain.Checkout, error) {
	return r.mutate(ctx, id, (*domain.Checkout).ConsumeContinuation)
}

func (r *CheckoutRepository) RecordFinishFailure(ctx context.Context, id string, reason string) (*domain.Checkout, error) {
	return r.mutate(ctx, id, func(c *domain.Checkout) error {
		c.RecordFinishFailure(reason)
		return nil
	})
}

func (r *CheckoutRepository) MarkFinalized(ctx context.Context, id string, outgoingPaymentID string) (*domain.Checkout, error) {
	return r.mutate(ctx, id, func(c *domain.Checkout) error {
		return c.Finalize(outgoingPaymentID)
	})
}

func (r *CheckoutRepository) mutate(ctx context.Context, id string, fn func(*domain.Checkout) error) (*domain.Checkout, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.checkouts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	working := stored.Clone()
	if err := fn(working); err != nil {
		return stored.Clone(), err
	}
	r.checkouts[id] = working
	return working.Clone(), nil
}
