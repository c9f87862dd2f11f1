package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/payment"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/observability"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/observability/obstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallRecordsSuccess(t *testing.T) {
	rec := obstest.New()
	ext := NewExternal("wallet", time.Second, rec)

	got, err := Call(context.Background(), ext, "wallet_address.get", func(context.Context) (string, error) {
		return "https://ilp.example/alice", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "https://ilp.example/alice", got)
	assert.Equal(t, 1.0, rec.Value(observability.MExternalRequests, "peer=wallet", "endpoint=wallet_address.get", "outcome=success"))
	assert.Equal(t, 1, rec.Count(observability.MExternalRequestDuration, "peer=wallet", "endpoint=wallet_address.get"))
}

func TestCallTimeoutIsDistinct(t *testing.T) {
	rec := obstest.New()
	ext := NewExternal("auth", 10*time.Millisecond, rec)

	err := ext.Do(context.Background(), "grant.request", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	require.ErrorIs(t, err, ErrTimeout)
	_, isProtocol := payment.AsProtocolError(err)
	assert.False(t, isProtocol)
	assert.Contains(t, err.Error(), "grant.request")
	assert.Equal(t, 1.0, rec.Value(observability.MExternalRequests, "peer=auth", "endpoint=grant.request", "outcome=timeout"))
	assert.Contains(t, rec.Messages(), "external_call_failed")
}

func TestCallKeepsProtocolError(t *testing.T) {
	ext := NewExternal("wallet", time.Second, nil)

	err := ext.Do(context.Background(), "quote.create", func(context.Context) error {
		return &payment.ProtocolError{Op: "POST quotes", Status: 403, Message: "forbidden"}
	})

	pe, ok := payment.AsProtocolError(err)
	require.True(t, ok)
	assert.Equal(t, 403, pe.Status)
	assert.False(t, errors.Is(err, ErrTimeout))
}

func TestCallCallerCancellationIsNotTimeout(t *testing.T) {
	rec := obstest.New()
	ext := NewExternal("wallet", time.Second, rec)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := ext.Do(ctx, "incoming_payment.get", func(ctx context.Context) error { return ctx.Err() })

	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.Is(err, ErrTimeout))
	assert.Equal(t, 1.0, rec.Value(observability.MExternalRequests, "peer=wallet", "endpoint=incoming_payment.get", "outcome=canceled"))
}

func TestDetachedSurvivesParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "v"))
	cancel()

	ctx, done := Detached(parent)
	defer done()

	require.NoError(t, ctx.Err())
	assert.Equal(t, "v", ctx.Value(ctxKey{}))
	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(PersistTimeout), deadline, time.Second)
}

type ctxKey struct{}
