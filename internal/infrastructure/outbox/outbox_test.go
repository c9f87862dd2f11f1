package outbox

import (
	"context"
	"sync"
	"testing"
	"time"

	domoutbox "github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/outbox"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/observability/obstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedEvent string

func (e namedEvent) EventName() string { return string(e) }

func TestBusDeliversToEverySubscriberInOrder(t *testing.T) {
	rec := obstest.New()
	bus := NewBus(rec.Logger(), Options{})

	var mu sync.Mutex
	var got []string
	record := func(prefix string) domoutbox.Handler {
		return func(_ context.Context, e domoutbox.Event) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, prefix+":"+e.EventName())
			return nil
		}
	}
	bus.Subscribe("a", record("x"))
	bus.Subscribe("a", record("y"))
	bus.Subscribe("b", record("x"))
	bus.Start(context.Background())

	require.NoError(t, bus.Publish(context.Background(), namedEvent("a")))
	require.NoError(t, bus.Publish(context.Background(), namedEvent("b")))
	require.NoError(t, bus.Publish(context.Background(), namedEvent("unheard")))

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	bus.Stop(stopCtx)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 3)
	assert.ElementsMatch(t, []string{"x:a", "y:a"}, got[:2])
	assert.Equal(t, "x:b", got[2])
}

func TestBusSurvivesPanickingHandler(t *testing.T) {
	rec := obstest.New()
	bus := NewBus(rec.Logger(), Options{})
	delivered := make(chan struct{}, 1)
	bus.Subscribe("a", func(context.Context, domoutbox.Event) error { panic("boom") })
	bus.Subscribe("b", func(context.Context, domoutbox.Event) error {
		delivered <- struct{}{}
		return nil
	})
	bus.Start(context.Background())

	require.NoError(t, bus.Publish(context.Background(), namedEvent("a")))
	require.NoError(t, bus.Publish(context.Background(), namedEvent("b")))

	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("event after panic was not delivered")
	}
	bus.Stop(context.Background())
	assert.Contains(t, rec.Messages(), "event_handler_panic")
}

func TestBusRejectsPublishAfterStop(t *testing.T) {
	bus := NewBus(nil, Options{QueueSize: 1})
	bus.Start(context.Background())
	bus.Stop(context.Background())

	assert.ErrorIs(t, bus.Publish(context.Background(), namedEvent("a")), ErrClosed)
}

func TestBusPublishHonoursContextWhenFull(t *testing.T) {
	bus := NewBus(nil, Options{QueueSize: 1})
	require.NoError(t, bus.Publish(context.Background(), namedEvent("a")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, bus.Publish(ctx, namedEvent("b")), context.Canceled)
}
