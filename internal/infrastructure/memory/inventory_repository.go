package memory

import (
	"context"
	"sync"

	domain "github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/inventory"
)

// InventoryGateway keeps stock in process. It is the default gateway and the
// one used by tests.
type InventoryGateway struct {
	mu    sync.RWMutex
	items map[string]*domain.Item
}

func NewInventoryGateway(items ...domain.Item) *InventoryGateway {
	g := &InventoryGateway{items: make(map[string]*domain.Item, len(items))}
	for _, it := range items {
		it := it
		g.items[it.ProductID] = &it
	}
	return g
}

// SetStock creates or replaces a product's stock.
func (g *InventoryGateway) SetStock(productID string, stock int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if it, ok := g.items[productID]; ok {
		it.Stock = stock
		return
	}
	g.items[productID] = &domain.Item{ProductID: productID, Stock: stock}
}

func (g *InventoryGateway) Stock(ctx context.Context, productID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	it, ok := g.items[productID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	return it.Stock, nil
}

func (g *InventoryGateway) Decrement(ctx context.Context, productID string, quantity int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	it, ok := g.items[productID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if err := it.Deduct(quantity); err != nil {
		return it.Stock, err
	}
	return it.Stock, nil
}
