package checkout

import "time"

// StartedEvent is emitted when the payer has been sent to interact with their wallet.
type StartedEvent struct {
	CheckoutID  string
	Payer       string
	QuoteID     string
	DebitAmount string
	OccurredAt  time.Time
}

func (StartedEvent) EventName() string { return "checkout.started" }
func (e StartedEvent) PartitionKey() string { return e.CheckoutID }

func NewStartedEvent(c *Checkout) StartedEvent {
	return StartedEvent{
		CheckoutID:  c.ID,
		Payer:       c.PayerWalletAddress,
		QuoteID:     c.QuoteID,
		DebitAmount: c.DebitAmount.Value,
		OccurredAt:  time.Now().UTC(),
	}
}

// FinalizedEvent is emitted once the outgoing payment was created.
type FinalizedEvent struct {
	CheckoutID        string
	OutgoingPaymentID string
	OccurredAt        time.Time
}

func (FinalizedEvent) EventName() string { return "checkout.finalized" }
func (e FinalizedEvent) PartitionKey() string { return e.CheckoutID }

func NewFinalizedEvent(c *Checkout) FinalizedEvent {
	return FinalizedEvent{
		CheckoutID:        c.ID,
		OutgoingPaymentID: c.FinalizedPaymentID,
		OccurredAt:        time.Now().UTC(),
	}
}
