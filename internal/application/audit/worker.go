// Package audit follows every domain event off the bus: it counts and logs
// each one and relays it to an optional durable sink such as Kafka.
package audit

import (
	"context"
	"fmt"

	"github.com/Zhima-Mochi/openpayments-pos/app/internal/application"
	domcheckout "github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/checkout"
	domorder "github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/outbox"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/observability"
	"go.opentelemetry.io/otel/attribute"
)

const (
	workerService = "audit_worker"
	useCaseAudit  = "audit.event"
)

// EventNames lists the events the service publishes.
func EventNames() []string {
	return []string{
		domorder.CreatedEvent{}.EventName(),
		domorder.InventoryReconciledEvent{}.EventName(),
		domorder.InventoryReconciliationFailedEvent{}.EventName(),
		domcheckout.StartedEvent{}.EventName(),
		domcheckout.FinalizedEvent{}.EventName(),
	}
}

type Worker struct {
	subscriber domoutbox.Subscriber
	sink       domoutbox.Publisher

	inst         application.Instruments
	relay        *application.External
	eventCounter observability.Counter // domain_events_total{event,outcome}
}

// New returns a worker for subscriber. sink may be nil.
func New(subscriber domoutbox.Subscriber, sink domoutbox.Publisher, timeouts application.Timeouts, tel observability.Observability) *Worker {
	tel = observability.OrNop(tel)
	return &Worker{
		subscriber:   subscriber,
		sink:         sink,
		inst:         application.NewInstruments(tel, workerService),
		relay:        application.NewExternal(application.PeerOutbox, timeouts.Publish, tel),
		eventCounter: tel.Metrics().Counter(observability.MDomainEvents),
	}
}

func (w *Worker) Start() {
	if w.subscriber == nil {
		return
	}
	for _, name := range EventNames() {
		w.subscriber.Subscribe(name, w.handle)
	}
}

func (w *Worker) handle(ctx context.Context, e domoutbox.Event) (err error) {
	name := e.EventName()
	ctx, run := w.inst.Start(ctx, useCaseAudit, "AuditEvent", attribute.String("event", name))
	defer func() {
		outcome := observability.OutcomeSuccess
		if err != nil {
			outcome = observability.OutcomeError
		}
		w.eventCounter.Add(1,
			observability.L("event", name),
			observability.L("outcome", outcome),
		)
		run.End(ctx, err)
	}()

	fields := append([]observability.Field{observability.F("event", name)}, describe(e)...)
	run.Logger().Info("domain_event", fields...)
	run.With(observability.F("event", name))

	if w.sink == nil {
		return nil
	}
	if err := w.relay.Do(ctx, "relay."+name, func(ctx context.Context) error {
		return w.sink.Publish(ctx, e)
	}); err != nil {
		run.Fail("RELAY_FAILED")
		return fmt.Errorf("audit: relay %s: %w", name, err)
	}
	return nil
}

func describe(e domoutbox.Event) []observability.Field {
	switch evt := e.(type) {
	case domorder.CreatedEvent:
		return []observability.Field{
			observability.F("order_id", evt.OrderID),
			observability.F("total", evt.Total),
		}
	case domorder.InventoryReconciledEvent:
		return []observability.Field{
			observability.F("order_id", evt.OrderID),
			observability.F("succeeded", evt.Succeeded),
			observability.F("failed", evt.Failed),
			observability.F("skipped", evt.Skipped),
		}
	case domorder.InventoryReconciliationFailedEvent:
		return []observability.Field{
			observability.F("order_id", evt.OrderID),
			observability.F("reason", evt.Reason),
		}
	case domcheckout.StartedEvent:
		return []observability.Field{
			observability.F("checkout_id", evt.CheckoutID),
			observability.F("debit_amount", evt.DebitAmount),
		}
	case domcheckout.FinalizedEvent:
		return []observability.Field{
			observability.F("checkout_id", evt.CheckoutID),
			observability.F("outgoing_payment_id", evt.OutgoingPaymentID),
		}
	}
	return nil
}
