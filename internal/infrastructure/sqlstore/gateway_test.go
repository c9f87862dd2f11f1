package sqlstore

import (
	"context"
	"sync"
	"testing"

	domain "github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/inventory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGateway(t *testing.T) *Gateway {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	g := New(db, DriverSQLite)
	require.NoError(t, g.Migrate(ctx))
	require.NoError(t, g.Migrate(ctx))
	require.NoError(t, g.Upsert(ctx, domain.Item{ProductID: "p-1", Name: "Café", Stock: 5}))
	return g
}

func TestDecrementIsConditional(t *testing.T) {
	g := newGateway(t)
	ctx := context.Background()

	left, err := g.Decrement(ctx, "p-1", 3)
	require.NoError(t, err)
	assert.Equal(t, 2, left)

	left, err = g.Decrement(ctx, "p-1", 3)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, 2, left)

	stock, err := g.Stock(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stock)
}

func TestDecrementUnknownAndInvalid(t *testing.T) {
	g := newGateway(t)
	ctx := context.Background()

	_, err := g.Decrement(ctx, "missing", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = g.Stock(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = g.Decrement(ctx, "p-1", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestUpsertReplacesStock(t *testing.T) {
	g := newGateway(t)
	ctx := context.Background()

	require.NoError(t, g.Upsert(ctx, domain.Item{ProductID: "p-1", Name: "Café", Stock: 40}))
	stock, err := g.Stock(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, 40, stock)
}

func TestConcurrentDecrementsNeverOversell(t *testing.T) {
	g := newGateway(t)
	ctx := context.Background()

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := g.Decrement(ctx, "p-1", 1); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, ok)
	stock, err := g.Stock(ctx, "p-1")
	require.NoError(t, err)
	assert.Zero(t, stock)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "postgres", "")
	assert.Error(t, err)
}

func TestStoreFailuresWrapGatewayError(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, DriverSQLite, ":memory:")
	require.NoError(t, err)
	g := New(db, DriverSQLite)
	require.NoError(t, g.Migrate(ctx))
	require.NoError(t, db.Close())

	_, err = g.Stock(ctx, "p-1")
	assert.ErrorIs(t, err, domain.ErrGateway)

	_, err = g.Decrement(ctx, "p-1", 1)
	assert.ErrorIs(t, err, domain.ErrGateway)
}
