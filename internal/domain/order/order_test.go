package order

import (
	"testing"
	"time"

	"github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/inventory"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mxn(v string) money.Amount { return money.Amount{Value: v, AssetCode: "MXN", AssetScale: 2} }

func newTestOrder(t *testing.T) *Order {
	t.Helper()
	o, err := New("o-1", "https://wallet.example/incoming-payments/1", "https://wallet.example/shop",
		[]Line{{ProductID: "p1", Name: "Coffee", UnitPrice: "18.00", Quantity: 2}, {ProductID: "p2", Name: "Cake", UnitPrice: "25.00", Quantity: 1}},
		"16", mxn("6100"), mxn("976"), mxn("7076"))
	require.NoError(t, err)
	return o
}

func TestValidateLines(t *testing.T) {
	assert.ErrorIs(t, ValidateLines(nil), ErrEmptyCart)
	assert.ErrorIs(t, ValidateLines([]Line{{Name: "x", UnitPrice: "1", Quantity: 0}}), ErrInvalidLine)
	assert.ErrorIs(t, ValidateLines([]Line{{Name: "x", Quantity: 1}}), ErrInvalidLine)
	assert.NoError(t, ValidateLines([]Line{{Name: "x", UnitPrice: "1", Quantity: 1}}))
}

func TestNewRejectsInconsistentTotals(t *testing.T) {
	lines := []Line{{Name: "x", UnitPrice: "1", Quantity: 1}}

	_, err := New("o", "u", "w", lines, "0", mxn("0"), mxn("0"), mxn("0"))
	assert.ErrorIs(t, err, money.ErrNegativeOrZeroTotal)

	_, err = New("o", "u", "w", lines, "16", mxn("100"), mxn("16"), mxn("117"))
	assert.ErrorIs(t, err, money.ErrInvalidAmount)
}

func TestNewRejectsMixedAssets(t *testing.T) {
	lines := []Line{{ProductID: "p1", Name: "x", UnitPrice: "1", Quantity: 1}}
	usd := money.Amount{Value: "16", AssetCode: "USD", AssetScale: 2}

	_, err := New("o", "u", "w", lines, "16", mxn("100"), usd, mxn("116"))
	assert.ErrorIs(t, err, money.ErrAssetMismatch)
}

func TestMarkReconciledKeepsPartialFailureSummary(t *testing.T) {
	o := newTestOrder(t)
	result := &inventory.Result{}
	result.Add(inventory.LineResult{ProductID: "p1", Status: inventory.LineSucceeded})
	result.Add(inventory.LineResult{ProductID: "p2", Status: inventory.LineFailed, Reason: inventory.ReasonNotFound})

	require.NoError(t, o.MarkReconciled(time.Now(), result))
	assert.True(t, o.InventoryReconciled)
	assert.Equal(t, "1 of 2 lines failed (p2: not_found)", o.InventoryError)
}

func TestReconcilableAndCursor(t *testing.T) {
	o := newTestOrder(t)
	assert.True(t, o.Reconcilable())

	custom := &Order{ID: "c", Lines: []Line{{Name: "custom", UnitPrice: "5", Quantity: 1}}}
	assert.False(t, custom.Reconcilable())

	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := Cursor{CreatedAt: at, ID: "b"}
	assert.True(t, Cursor{}.Precedes(&Order{ID: "a", CreatedAt: at}))
	assert.True(t, c.Precedes(&Order{ID: "c", CreatedAt: at}))
	assert.False(t, c.Precedes(&Order{ID: "b", CreatedAt: at}))
	assert.False(t, c.Precedes(&Order{ID: "z", CreatedAt: at.Add(-time.Second)}))
	assert.True(t, c.Precedes(&Order{ID: "a", CreatedAt: at.Add(time.Second)}))
	assert.True(t, Cursor{}.IsZero())
}

func TestMarkReconciledHappensOnce(t *testing.T) {
	o := newTestOrder(t)
	require.NoError(t, o.RecordReconciliationFailure("p1: gateway_error", &inventory.Result{Failed: 1}))

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, o.MarkReconciled(at, &inventory.Result{Succeeded: 2}))
	assert.True(t, o.InventoryReconciled)
	assert.Equal(t, at, *o.InventoryReconciledAt)
	assert.Empty(t, o.InventoryError, "success clears a previous error")

	assert.ErrorIs(t, o.MarkReconciled(at.Add(time.Hour), nil), ErrAlreadyReconciled)
	assert.ErrorIs(t, o.RecordReconciliationFailure("late", nil), ErrAlreadyReconciled)
	assert.Equal(t, at, *o.InventoryReconciledAt)
	assert.Empty(t, o.InventoryError)
}

func TestCloneIsDeep(t *testing.T) {
	o := newTestOrder(t)
	require.NoError(t, o.MarkReconciled(time.Now(), &inventory.Result{Succeeded: 1, Lines: []inventory.LineResult{{ProductID: "p1"}}}))

	c := o.Clone()
	c.Lines[0].Quantity = 99
	*c.InventoryReconciledAt = time.Time{}
	c.Reconciliation.Lines[0].ProductID = "changed"

	assert.Equal(t, 2, o.Lines[0].Quantity)
	assert.False(t, o.InventoryReconciledAt.IsZero())
	assert.Equal(t, "p1", o.Reconciliation.Lines[0].ProductID)
}
