package application

import (
	"context"
	"time"
)

// UseCase is one application operation.
type UseCase[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}

// IDGenerator issues identifiers for new aggregates.
type IDGenerator interface {
	NewID() string
}

// PersistTimeout bounds store writes made through Detached.
const PersistTimeout = 5 * time.Second

// Detached keeps ctx's values but not its cancellation, bounded by
// PersistTimeout. Use it to record the outcome of a side effect that already
// happened at a peer, so a caller going away cannot lose it.
func Detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), PersistTimeout)
}
