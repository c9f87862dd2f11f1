package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemDeduct(t *testing.T) {
	item := &Item{ProductID: "p1", Stock: 3}

	require.NoError(t, item.Deduct(2))
	assert.Equal(t, 1, item.Stock)
	assert.ErrorIs(t, item.Deduct(2), ErrInsufficientStock)
	assert.ErrorIs(t, item.Deduct(0), ErrInvalidQuantity)
	assert.Equal(t, 1, item.Stock)
}

func TestResultCountsAndSummary(t *testing.T) {
	before, after := 5, 3
	var r Result
	r.Add(LineResult{ProductID: "p1", Quantity: 2, Status: LineSucceeded, StockBefore: &before, StockAfter: &after})
	r.Add(LineResult{ProductID: "p2", Quantity: 1, Status: LineFailed, Reason: ReasonNotFound})
	r.Add(LineResult{ProductID: "p3", Quantity: 9, Status: LineFailed, Reason: ReasonInsufficientStock})
	r.Add(LineResult{Name: "gift wrap", Quantity: 1, Status: LineSkipped, Reason: ReasonMissingProductID})

	assert.Equal(t, 1, r.Succeeded)
	assert.Equal(t, 2, r.Failed)
	assert.Equal(t, 1, r.Skipped)
	assert.True(t, r.Reconciled())
	assert.Equal(t, "2 of 4 lines failed (p2: not_found; p3: insufficient_stock)", r.FailureSummary())

	clone := r.Clone()
	*clone.Lines[0].StockAfter = 0
	assert.Equal(t, 3, *r.Lines[0].StockAfter)
}

func TestResultSummaryWhenNothingReconciled(t *testing.T) {
	var r Result
	r.Add(LineResult{Name: "service", Quantity: 1, Status: LineSkipped, Reason: ReasonMissingProductID})

	assert.False(t, r.Reconciled())
	assert.Equal(t, "no lines reconciled (1 skipped)", r.FailureSummary())
}
