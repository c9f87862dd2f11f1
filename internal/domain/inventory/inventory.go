// Package inventory holds the stock side of a sale: the gateway to the product
// store and the per-line outcome of reconciling a paid order against it.
package inventory

import (
	"context"
	"errors"
)

var (
	ErrNotFound          = errors.New("inventory: product not found")
	ErrInvalidQuantity   = errors.New("inventory: quantity must be greater than zero")
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
	ErrGateway           = errors.New("inventory: gateway failure")
)

// Gateway reads and decrements product stock. Decrement is conditional at the
// store: it fails with ErrInsufficientStock rather than going negative.
type Gateway interface {
	Stock(ctx context.Context, productID string) (int, error)
	Decrement(ctx context.Context, productID string, quantity int) (remaining int, err error)
}

// Item is a product row as seen by gateways that keep stock in process.
type Item struct {
	ProductID string
	Name      string
	Stock     int
}

// Deduct removes quantity from the item's stock.
func (i *Item) Deduct(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if quantity > i.Stock {
		return ErrInsufficientStock
	}
	i.Stock -= quantity
	return nil
}
