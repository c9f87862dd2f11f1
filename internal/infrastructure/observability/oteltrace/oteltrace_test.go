package oteltrace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestSetupWithoutEndpointInstallsPropagatorOnly(t *testing.T) {
	shutdown, err := Setup(context.Background(), Options{ServiceName: "pos"})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(context.Background()))

	fields := otel.GetTextMapPropagator().Fields()
	assert.Contains(t, fields, "traceparent")
	assert.Contains(t, fields, "baggage")
}

func TestTracerStartsSpan(t *testing.T) {
	ctx, span := New("").Start(context.Background(), "UC.Test")
	defer span.End()
	assert.NotNil(t, ctx)
}
