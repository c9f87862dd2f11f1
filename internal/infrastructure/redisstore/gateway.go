// Package redisstore keeps product stock in Redis.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/inventory"
	"github.com/redis/go-redis/v9"
)

const stockKeyPrefix = "pos:stock:"

// decrementScript returns {status, stock}: status 1 decremented, 0 short,
// -1 unknown product.
var decrementScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if not current then
	return {-1, 0}
end
current = tonumber(current)
local quantity = tonumber(ARGV[1])
if current < quantity then
	return {0, current}
end
return {1, redis.call('DECRBY', KEYS[1], quantity)}
`)

type Gateway struct {
	client redis.UniversalClient
}

var _ domain.Gateway = (*Gateway)(nil)

func New(client redis.UniversalClient) *Gateway {
	return &Gateway{client: client}
}

func key(productID string) string { return stockKeyPrefix + productID }

// SetStock creates or replaces a product's stock.
func (g *Gateway) SetStock(ctx context.Context, productID string, stock int) error {
	if err := g.client.Set(ctx, key(productID), stock, 0).Err(); err != nil {
		return fmt.Errorf("redisstore: set %s: %w", productID, err)
	}
	return nil
}

func (g *Gateway) Stock(ctx context.Context, productID string) (int, error) {
	n, err := g.client.Get(ctx, key(productID)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("redisstore: get %s: %w: %w", productID, domain.ErrGateway, err)
	}
	return n, nil
}

func (g *Gateway) Decrement(ctx context.Context, productID string, quantity int) (int, error) {
	if quantity <= 0 {
		return 0, domain.ErrInvalidQuantity
	}
	res, err := decrementScript.Run(ctx, g.client, []string{key(productID)}, quantity).Int64Slice()
	if err != nil {
		return 0, fmt.Errorf("redisstore: decrement %s: %w: %w", productID, domain.ErrGateway, err)
	}
	if len(res) != 2 {
		return 0, fmt.Errorf("redisstore: decrement %s: %w: unexpected reply %v", productID, domain.ErrGateway, res)
	}
	switch res[0] {
	case -1:
		return 0, domain.ErrNotFound
	case 0:
		return int(res[1]), domain.ErrInsufficientStock
	}
	return int(res[1]), nil
}
