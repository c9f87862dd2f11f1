// Package checkout models a payer-initiated payment: a quote on the customer's
// wallet, an interactive outgoing-payment grant, and the payment it authorizes.
package checkout

import (
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/money"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/payment"
)

var (
	ErrNotFound                = errors.New("checkout: not found")
	ErrConflict                = errors.New("checkout: already exists")
	ErrInvalidReceiver         = errors.New("checkout: receiver incoming payment url is required")
	ErrMissingInteractRef      = errors.New("checkout: interact reference is required")
	ErrContinuationConsumed    = errors.New("checkout: grant continuation already used; payment needs manual reconciliation")
	ErrFinishAttemptsExhausted = errors.New("checkout: too many failed finish attempts")
	ErrAlreadyFinalized        = errors.New("checkout: already finalized")
	ErrInvalidTransition       = errors.New("checkout: invalid state transition")
)

// MaxFinishAttempts bounds how often a failed grant continuation may be retried.
const MaxFinishAttempts = 2

// Checkout is the state of one payer-initiated payment.
type Checkout struct {
	ID                      string
	PayerWalletAddress      string
	PayerResourceServer     string
	ReceiverIncomingPayment string
	QuoteID                 string
	DebitAmount             money.Amount
	Continuation            payment.Continuation
	Status                  Status
	FinalizedPaymentID      string
	FailedFinishAttempts    int
	LastError               string
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// New returns a checkout waiting for the payer's interaction.
func New(id string, payer *payment.WalletAddress, receiver string, quote *payment.Quote, cont payment.Continuation) (*Checkout, error) {
	if id == "" || payer == nil || quote == nil {
		return nil, fmt.Errorf("checkout: id, payer and quote are required")
	}
	if cont.URI == "" || cont.AccessToken == "" {
		return nil, fmt.Errorf("checkout: grant continuation is incomplete")
	}
	now := time.Now().UTC()
	c := &Checkout{
		ID:                      id,
		PayerWalletAddress:      payer.ID,
		PayerResourceServer:     payer.ResourceServer,
		ReceiverIncomingPayment: receiver,
		QuoteID:                 quote.ID,
		DebitAmount:             quote.DebitAmount,
		Continuation:            cont,
		Status:                  StatusStarted,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if err := c.transition(StatusInteractionPending); err != nil {
		return nil, err
	}
	return c, nil
}

// Finalized reports whether an outgoing payment exists for this checkout.
func (c *Checkout) Finalized() bool {
	return c.FinalizedPaymentID != ""
}

// CheckFinishable returns the error that prevents another finish attempt, if any.
func (c *Checkout) CheckFinishable() error {
	switch {
	case c.Finalized():
		return ErrAlreadyFinalized
	case c.Status == StatusContinuationConsumed:
		return ErrContinuationConsumed
	case c.FailedFinishAttempts >= MaxFinishAttempts:
		return ErrFinishAttemptsExhausted
	}
	return nil
}

// ConsumeContinuation records that the one-shot grant continuation was used.
func (c *Checkout) ConsumeContinuation() error {
	if err := c.transition(StatusContinuationConsumed); err != nil {
		return err
	}
	c.LastError = ""
	return nil
}

// RecordFinishFailure notes a failed finish. Failures before the continuation
// was consumed count towards MaxFinishAttempts.
func (c *Checkout) RecordFinishFailure(reason string) {
	if c.Status == StatusInteractionPending {
		c.FailedFinishAttempts++
	}
	c.LastError = reason
	c.touch()
}

// Finalize sets the outgoing payment id. It succeeds only once.
func (c *Checkout) Finalize(outgoingPaymentID string) error {
	if c.Finalized() {
		return ErrAlreadyFinalized
	}
	if outgoingPaymentID == "" {
		return fmt.Errorf("checkout: outgoing payment id is required")
	}
	if err := c.transition(StatusFinalized); err != nil {
		return err
	}
	c.FinalizedPaymentID = outgoingPaymentID
	c.LastError = ""
	return nil
}

// Clone returns a copy safe to hand out of a store.
func (c *Checkout) Clone() *Checkout {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

func (c *Checkout) transition(to Status) error {
	if !c.Status.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, to)
	}
	c.Status = to
	c.touch()
	return nil
}

func (c *Checkout) touch() {
	c.UpdatedAt = time.Now().UTC()
}
