package checkout

import "context"

// Repository stores checkouts. Each transition method applies the matching
// Checkout method atomically and returns the stored copy.
type Repository interface {
	Insert(ctx context.Context, c *Checkout) error
	Get(ctx context.Context, id string) (*Checkout, error)
	MarkContinuationConsumed(ctx context.Context, id string) (*Checkout, error)
	RecordFinishFailure(ctx context.Context, id string, reason string) (*Checkout, error)
	MarkFinalized(ctx context.Context, id string, outgoingPaymentID string) (*Checkout, error)
}
