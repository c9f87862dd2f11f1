package workerpresentation

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Zhima-Mochi/openpayments-pos/app/internal/application/reconciliation"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/observability/logctx"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/observability/obstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sweepFunc func(context.Context, reconciliation.ReconcilePendingInput) (*reconciliation.ReconcilePendingResult, error)

func (f sweepFunc) Execute(ctx context.Context, in reconciliation.ReconcilePendingInput) (*reconciliation.ReconcilePendingResult, error) {
	return f(ctx, in)
}

func TestPollerTicksUntilStopped(t *testing.T) {
	var calls atomic.Int32
	var limit atomic.Int32
	p := NewPoller(sweepFunc(func(ctx context.Context, in reconciliation.ReconcilePendingInput) (*reconciliation.ReconcilePendingResult, error) {
		calls.Add(1)
		limit.Store(int32(in.Limit))
		return &reconciliation.ReconcilePendingResult{Inspected: 1, Reconciled: 1}, nil
	}), 5*time.Millisecond, 10, nil)

	p.Start(context.Background())
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, time.Millisecond)
	p.Stop()

	after := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, calls.Load())
	assert.EqualValues(t, 10, limit.Load())
}

func TestPollerDisabledWithoutInterval(t *testing.T) {
	var calls atomic.Int32
	p := NewPoller(sweepFunc(func(context.Context, reconciliation.ReconcilePendingInput) (*reconciliation.ReconcilePendingResult, error) {
		calls.Add(1)
		return nil, nil
	}), 0, 0, nil)

	p.Start(context.Background())
	p.Stop()
	assert.Zero(t, calls.Load())
}

func TestPollerTickLogsFailureAndCarriesRunLogger(t *testing.T) {
	rec := obstest.New()
	var hasLogger bool
	p := NewPoller(sweepFunc(func(ctx context.Context, _ reconciliation.ReconcilePendingInput) (*reconciliation.ReconcilePendingResult, error) {
		hasLogger = logctx.From(ctx) != nil
		return nil, errors.New("store down")
	}), time.Minute, 0, rec.Logger())

	p.Tick(context.Background())
	assert.True(t, hasLogger)
	assert.Contains(t, rec.Messages(), "poller_tick_failed")
}

func TestWithEventContextAddsRunID(t *testing.T) {
	rec := obstest.New()
	ctx := WithEventContext(context.Background(), rec.Logger(), map[string]string{"trigger": "timer", "empty": ""})
	logctx.From(ctx).Info("hello")

	entries := rec.Logs.FilterMessage("hello").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.NotEmpty(t, fields["run_id"])
	assert.Equal(t, "timer", fields["trigger"])
	assert.NotContains(t, fields, "empty")
}
