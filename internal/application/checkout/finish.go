package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Zhima-Mochi/openpayments-pos/app/internal/application"
	domain "github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/checkout"
	domoutbox "github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/outbox"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/payment"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/observability"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/pkg/keylock"

	"go.opentelemetry.io/otel/attribute"
)

const (
	useCaseCheckoutFinish = "checkout.finish"
	paymentDescription    = "POS Open Payments"
)

type FinishCheckoutInput struct {
	CheckoutID  string
	InteractRef string
}

type FinishCheckoutResult struct {
	OutgoingPaymentID string
	// Replayed is set when the checkout had already been finalized.
	Replayed bool
}

// FinishCheckoutUseCase continues the outgoing-payment grant with the
// interaction reference and creates the outgoing payment, at most once.
type FinishCheckoutUseCase struct {
	repo      domain.Repository
	client    payment.Client
	locks     *keylock.Locker
	publisher domoutbox.Publisher

	inst     application.Instruments
	protocol *application.External
	outbox   *application.External
}

func NewFinishCheckoutUseCase(
	repo domain.Repository,
	client payment.Client,
	locks *keylock.Locker,
	publisher domoutbox.Publisher,
	timeouts application.Timeouts,
	tel observability.Observability,
) *FinishCheckoutUseCase {
	if locks == nil {
		locks = keylock.New()
	}
	return &FinishCheckoutUseCase{
		repo:      repo,
		client:    client,
		locks:     locks,
		publisher: publisher,
		inst:      application.NewInstruments(tel, checkoutService),
		protocol:  application.NewExternal(application.PeerOpenPayments, timeouts.Protocol, tel),
		outbox:    application.NewExternal(application.PeerOutbox, timeouts.Publish, tel),
	}
}

func (uc *FinishCheckoutUseCase) Execute(ctx context.Context, cmd FinishCheckoutInput) (_ *FinishCheckoutResult, err error) {
	ctx, run := uc.inst.Start(ctx, useCaseCheckoutFinish, "FinishCheckout",
		attribute.String("checkout.id", cmd.CheckoutID),
	)
	defer func() { run.End(ctx, err) }()
	run.With(observability.F("checkout_id", cmd.CheckoutID))

	if strings.TrimSpace(cmd.CheckoutID) == "" {
		run.Fail("CHECKOUT_ID_REQUIRED")
		return nil, domain.ErrNotFound
	}
	if strings.TrimSpace(cmd.InteractRef) == "" {
		run.Fail("INTERACT_REF_REQUIRED")
		return nil, domain.ErrMissingInteractRef
	}

	unlock, err := uc.locks.Lock(ctx, cmd.CheckoutID)
	if err != nil {
		run.Fail("LOCK_CANCELED")
		return nil, err
	}
	defer unlock()

	c, err := uc.repo.Get(ctx, cmd.CheckoutID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			run.Fail("CHECKOUT_NOT_FOUND")
			return nil, err
		}
		run.Fail("REPO_GET_FAILED")
		return nil, fmt.Errorf("%w: %w", ErrRepository, err)
	}
	if c.Finalized() {
		run.SetStatus("IDEMPOTENT_REPLAY")
		return &FinishCheckoutResult{OutgoingPaymentID: c.FinalizedPaymentID, Replayed: true}, nil
	}
	if err := c.CheckFinishable(); err != nil {
		run.Fail(finishBlockedStatus(err))
		return nil, err
	}

	grant, err := application.Call(ctx, uc.protocol, "grant.continue", func(ctx context.Context) (*payment.Grant, error) {
		return uc.client.ContinueGrant(ctx, c.Continuation, cmd.InteractRef)
	})
	if err == nil && grant.AccessToken == "" {
		err = fmt.Errorf("grant.continue: %w", payment.ErrMissingToken)
	}
	if err != nil {
		run.Fail("GRANT_CONTINUE_FAILED")
		uc.recordFailure(ctx, run, c.ID, err)
		return nil, err
	}

	// The continuation is spent at the authorization server. From here on the
	// caller going away must not abandon the payment or its bookkeeping.
	ctx = context.WithoutCancel(ctx)

	if err := uc.persist(ctx, func(ctx context.Context) error {
		_, err := uc.repo.MarkContinuationConsumed(ctx, c.ID)
		return err
	}); err != nil {
		run.Fail("REPO_UPDATE_FAILED")
		return nil, fmt.Errorf("%w: %w", ErrRepository, err)
	}

	op, err := application.Call(ctx, uc.protocol, "outgoing_payment.create", func(ctx context.Context) (*payment.OutgoingPayment, error) {
		return uc.client.CreateOutgoingPayment(ctx, c.PayerResourceServer, grant.AccessToken, payment.OutgoingPaymentRequest{
			WalletAddress: c.PayerWalletAddress,
			QuoteID:       c.QuoteID,
			Metadata:      map[string]any{"description": paymentDescription},
		})
	})
	if err != nil {
		run.Fail("OUTGOING_PAYMENT_FAILED")
		uc.recordFailure(ctx, run, c.ID, err)
		return nil, err
	}

	var finalized *domain.Checkout
	err = uc.persist(ctx, func(ctx context.Context) (err error) {
		finalized, err = uc.repo.MarkFinalized(ctx, c.ID, op.ID)
		return err
	})
	if err != nil {
		run.Fail("REPO_UPDATE_FAILED")
		return nil, fmt.Errorf("%w: %w", ErrRepository, err)
	}

	if uc.publisher != nil {
		if pubErr := uc.outbox.Do(ctx, "checkout.finalized", func(ctx context.Context) error {
			return uc.publisher.Publish(ctx, domain.NewFinalizedEvent(finalized))
		}); pubErr != nil {
			run.With(observability.F("event_publish_error", pubErr.Error()))
		}
	}

	run.With(observability.F("outgoing_payment_id", op.ID))
	run.Span().SetAttributes(attribute.String("checkout.outgoing_payment", op.ID))
	return &FinishCheckoutResult{OutgoingPaymentID: op.ID}, nil
}

// persist runs a store write that must land even when ctx is already canceled.
func (uc *FinishCheckoutUseCase) persist(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := application.Detached(ctx)
	defer cancel()
	return fn(ctx)
}

func (uc *FinishCheckoutUseCase) recordFailure(ctx context.Context, run *application.Execution, id string, cause error) {
	err := uc.persist(ctx, func(ctx context.Context) error {
		_, err := uc.repo.RecordFinishFailure(ctx, id, cause.Error())
		return err
	})
	if err != nil {
		run.Logger().Error("checkout_failure_not_recorded",
			observability.F("checkout_id", id),
			observability.F("error", err.Error()),
		)
	}
}

func finishBlockedStatus(err error) string {
	switch {
	case errors.Is(err, domain.ErrContinuationConsumed):
		return "CONTINUATION_CONSUMED"
	case errors.Is(err, domain.ErrFinishAttemptsExhausted):
		return "FINISH_ATTEMPTS_EXHAUSTED"
	}
	return "FINISH_BLOCKED"
}
