package redisstore

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	domain "github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/inventory"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestDecrement(t *testing.T) {
	client := redisClient(t)
	ctx := context.Background()
	g := New(client)
	product := "test-" + t.Name()
	t.Cleanup(func() { client.Del(ctx, key(product)) })

	require.NoError(t, g.SetStock(ctx, product, 4))

	left, err := g.Decrement(ctx, product, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, left)

	left, err = g.Decrement(ctx, product, 2)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, 1, left)

	_, err = g.Decrement(ctx, "test-missing", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = g.Decrement(ctx, product, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestConcurrentDecrementsNeverOversell(t *testing.T) {
	client := redisClient(t)
	ctx := context.Background()
	g := New(client)
	product := "test-" + t.Name()
	t.Cleanup(func() { client.Del(ctx, key(product)) })
	require.NoError(t, g.SetStock(ctx, product, 10))

	var ok atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := g.Decrement(ctx, product, 1); err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 10, ok.Load())
	stock, err := g.Stock(ctx, product)
	require.NoError(t, err)
	assert.Zero(t, stock)
}
