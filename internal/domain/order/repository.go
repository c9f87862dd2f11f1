package order

import (
	"context"
	"time"

	"github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/inventory"
)

// Repository stores orders. Reads return copies; mutation happens only through
// the reconciliation transitions, which are atomic per order.
type Repository interface {
	Insert(ctx context.Context, order *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	CompleteReconciliation(ctx context.Context, id string, at time.Time, result *inventory.Result) (*Order, error)
	RecordReconciliationFailure(ctx context.Context, id string, reason string, result *inventory.Result) (*Order, error)
	// ListUnreconciled returns reconcilable, unreconciled orders positioned
	// strictly after the cursor, in cursor order.
	ListUnreconciled(ctx context.Context, after Cursor, limit int) ([]*Order, error)
}

// Cursor is a position in the (CreatedAt, ID) order of orders. The zero value
// sits before every order.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

func (c Cursor) IsZero() bool { return c.CreatedAt.IsZero() && c.ID == "" }

// Precedes reports whether o sorts strictly after c.
func (c Cursor) Precedes(o *Order) bool {
	if !o.CreatedAt.Equal(c.CreatedAt) {
		return o.CreatedAt.After(c.CreatedAt)
	}
	return o.ID > c.ID
}
