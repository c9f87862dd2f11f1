package checkout

import (
	"testing"

	"github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/money"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCheckout(t *testing.T) *Checkout {
	t.Helper()
	c, err := New("c-1",
		&payment.WalletAddress{ID: "https://ilp.example/alice", ResourceServer: "https://rs.example"},
		"https://ilp.example/incoming-payments/9",
		&payment.Quote{ID: "https://rs.example/quotes/1", DebitAmount: money.Amount{Value: "7200", AssetCode: "MXN", AssetScale: 2}},
		payment.Continuation{URI: "https://auth.example/continue/1", AccessToken: "cont-token"},
	)
	require.NoError(t, err)
	return c
}

func TestNewStartsInteractionPending(t *testing.T) {
	c := newTestCheckout(t)
	assert.Equal(t, StatusInteractionPending, c.Status)
	assert.Equal(t, "7200", c.DebitAmount.Value)
	assert.NoError(t, c.CheckFinishable())
}

func TestNewRequiresContinuation(t *testing.T) {
	_, err := New("c", &payment.WalletAddress{ID: "w"}, "r", &payment.Quote{ID: "q"}, payment.Continuation{})
	require.Error(t, err)
}

func TestStatusTransitionsOnlyMoveForward(t *testing.T) {
	assert.True(t, StatusStarted.CanTransitionTo(StatusInteractionPending))
	assert.True(t, StatusInteractionPending.CanTransitionTo(StatusContinuationConsumed))
	assert.True(t, StatusContinuationConsumed.CanTransitionTo(StatusFinalized))

	assert.False(t, StatusInteractionPending.CanTransitionTo(StatusFinalized))
	assert.False(t, StatusContinuationConsumed.CanTransitionTo(StatusInteractionPending))
	assert.False(t, StatusFinalized.CanTransitionTo(StatusStarted))
	assert.True(t, StatusFinalized.Terminal())
}

func TestFinishLifecycle(t *testing.T) {
	c := newTestCheckout(t)

	require.NoError(t, c.ConsumeContinuation())
	assert.ErrorIs(t, c.CheckFinishable(), ErrContinuationConsumed)

	require.NoError(t, c.Finalize("https://rs.example/outgoing-payments/1"))
	assert.Equal(t, StatusFinalized, c.Status)
	assert.ErrorIs(t, c.Finalize("other"), ErrAlreadyFinalized)
	assert.ErrorIs(t, c.CheckFinishable(), ErrAlreadyFinalized)
}

func TestFinalizeRequiresConsumedContinuation(t *testing.T) {
	c := newTestCheckout(t)
	assert.ErrorIs(t, c.Finalize("op-1"), ErrInvalidTransition)
	assert.False(t, c.Finalized())
}

func TestFinishFailuresAreBounded(t *testing.T) {
	c := newTestCheckout(t)

	c.RecordFinishFailure("continue: 500")
	assert.NoError(t, c.CheckFinishable())
	c.RecordFinishFailure("continue: 500")
	assert.ErrorIs(t, c.CheckFinishable(), ErrFinishAttemptsExhausted)
	assert.Equal(t, "continue: 500", c.LastError)
}

func TestFailureAfterConsumptionDoesNotCountAsAttempt(t *testing.T) {
	c := newTestCheckout(t)
	require.NoError(t, c.ConsumeContinuation())

	c.RecordFinishFailure("create outgoing payment: 502")
	assert.Equal(t, 0, c.FailedFinishAttempts)
	assert.Equal(t, StatusContinuationConsumed, c.Status)
}
