package order

import "time"

// CreatedEvent is emitted once the incoming payment exists and the order is stored.
type CreatedEvent struct {
	OrderID            string
	IncomingPaymentURL string
	Total              string
	AssetCode          string
	Lines              int
	OccurredAt         time.Time
}

func (CreatedEvent) EventName() string { return "order.created" }
func (e CreatedEvent) PartitionKey() string { return e.OrderID }

func NewCreatedEvent(o *Order) CreatedEvent {
	return CreatedEvent{
		OrderID:            o.ID,
		IncomingPaymentURL: o.IncomingPaymentURL,
		Total:              o.Total.Value,
		AssetCode:          o.Total.AssetCode,
		Lines:              len(o.Lines),
		OccurredAt:         time.Now().UTC(),
	}
}

// InventoryReconciledEvent is emitted when stock was decremented for a paid order.
type InventoryReconciledEvent struct {
	OrderID    string
	Succeeded  int
	Failed     int
	Skipped    int
	OccurredAt time.Time
}

func (InventoryReconciledEvent) EventName() string { return "order.inventory_reconciled" }
func (e InventoryReconciledEvent) PartitionKey() string { return e.OrderID }

func NewInventoryReconciledEvent(o *Order) InventoryReconciledEvent {
	e := InventoryReconciledEvent{OrderID: o.ID, OccurredAt: time.Now().UTC()}
	if r := o.Reconciliation; r != nil {
		e.Succeeded, e.Failed, e.Skipped = r.Succeeded, r.Failed, r.Skipped
	}
	return e
}

// InventoryReconciliationFailedEvent is emitted when a paid order could not be reconciled.
type InventoryReconciliationFailedEvent struct {
	OrderID    string
	Reason     string
	OccurredAt time.Time
}

func (InventoryReconciliationFailedEvent) EventName() string { return "order.inventory_failed" }
func (e InventoryReconciliationFailedEvent) PartitionKey() string { return e.OrderID }

func NewInventoryReconciliationFailedEvent(o *Order) InventoryReconciliationFailedEvent {
	return InventoryReconciliationFailedEvent{
		OrderID:    o.ID,
		Reason:     o.InventoryError,
		OccurredAt: time.Now().UTC(),
	}
}
