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

	"go.opentelemetry.io/otel/attribute"
)

const (
	checkoutService      = "checkout-service"
	useCaseCheckoutStart = "checkout.start"
	finishQueryParam     = "checkoutId"
)

var ErrRepository = errors.New("checkout: repository failure")

type StartCheckoutInput struct {
	PayerPointer               string
	ReceiverIncomingPaymentURL string
	FinishURL                  string
}

type StartCheckoutResult struct {
	CheckoutID  string
	RedirectURL string
}

// StartCheckoutUseCase quotes a payment from the customer's wallet to an
// incoming payment and requests the interactive outgoing-payment grant.
type StartCheckoutUseCase struct {
	repo        domain.Repository
	client      payment.Client
	idGenerator application.IDGenerator
	publisher   domoutbox.Publisher
	retry       application.RetryPolicy
	finishURL   string

	inst     application.Instruments
	protocol *application.External
	outbox   *application.External
}

func NewStartCheckoutUseCase(
	repo domain.Repository,
	client payment.Client,
	idGen application.IDGenerator,
	publisher domoutbox.Publisher,
	retry application.RetryPolicy,
	merchant application.Merchant,
	timeouts application.Timeouts,
	tel observability.Observability,
) *StartCheckoutUseCase {
	return &StartCheckoutUseCase{
		repo:        repo,
		client:      client,
		idGenerator: idGen,
		publisher:   publisher,
		retry:       retry,
		finishURL:   merchant.FinishURL,
		inst:        application.NewInstruments(tel, checkoutService),
		protocol:    application.NewExternal(application.PeerOpenPayments, timeouts.Protocol, tel),
		outbox:      application.NewExternal(application.PeerOutbox, timeouts.Publish, tel),
	}
}

func (uc *StartCheckoutUseCase) Execute(ctx context.Context, cmd StartCheckoutInput) (_ *StartCheckoutResult, err error) {
	ctx, run := uc.inst.Start(ctx, useCaseCheckoutStart, "StartCheckout")
	defer func() { run.End(ctx, err) }()
	span := run.Span()

	payerURL, err := NormalizePointer(cmd.PayerPointer)
	if err != nil {
		run.Fail("INVALID_POINTER")
		return nil, err
	}
	receiver := strings.TrimSpace(cmd.ReceiverIncomingPaymentURL)
	if receiver == "" {
		run.Fail("INVALID_RECEIVER")
		return nil, domain.ErrInvalidReceiver
	}
	finishURL := cmd.FinishURL
	if finishURL == "" {
		finishURL = uc.finishURL
	}
	span.SetAttributes(
		attribute.String("checkout.payer", payerURL),
		attribute.String("checkout.receiver", receiver),
	)

	var payer *payment.WalletAddress
	err = uc.retry.Do(ctx, func(ctx context.Context, attempt int) error {
		w, callErr := application.Call(ctx, uc.protocol, "wallet_address.get", func(ctx context.Context) (*payment.WalletAddress, error) {
			return uc.client.GetWalletAddress(ctx, payerURL)
		})
		if callErr != nil {
			run.With(observability.F("wallet_attempts", attempt))
			return callErr
		}
		payer = w
		return nil
	})
	if err != nil {
		run.Fail("PAYER_WALLET_LOOKUP_FAILED")
		return nil, err
	}

	quoteGrant, err := application.Call(ctx, uc.protocol, "grant.request", func(ctx context.Context) (*payment.Grant, error) {
		return uc.client.RequestGrant(ctx, payment.GrantRequest{
			AuthServer: payer.AuthServer,
			Access: []payment.AccessItem{{
				Type:    payment.AccessQuote,
				Actions: []string{payment.ActionCreate, payment.ActionRead},
			}},
		})
	})
	if err != nil {
		run.Fail("QUOTE_GRANT_FAILED")
		return nil, err
	}
	if quoteGrant.AccessToken == "" {
		run.Fail("QUOTE_GRANT_WITHOUT_TOKEN")
		return nil, fmt.Errorf("grant.request: %w", payment.ErrMissingToken)
	}

	quote, err := application.Call(ctx, uc.protocol, "quote.create", func(ctx context.Context) (*payment.Quote, error) {
		return uc.client.CreateQuote(ctx, payer.ResourceServer, quoteGrant.AccessToken, payment.QuoteRequest{
			WalletAddress: payer.ID,
			Receiver:      receiver,
			Method:        payment.MethodILP,
		})
	})
	if err != nil {
		run.Fail("QUOTE_CREATE_FAILED")
		return nil, err
	}

	checkoutID := uc.idGenerator.NewID()
	finishURI, err := withQuery(finishURL, finishQueryParam, checkoutID)
	if err != nil {
		run.Fail("INVALID_FINISH_URL")
		return nil, fmt.Errorf("checkout: finish url: %w", err)
	}
	debit := quote.DebitAmount
	grant, err := application.Call(ctx, uc.protocol, "grant.request", func(ctx context.Context) (*payment.Grant, error) {
		return uc.client.RequestGrant(ctx, payment.GrantRequest{
			AuthServer: payer.AuthServer,
			Access: []payment.AccessItem{{
				Type:       payment.AccessOutgoingPayment,
				Actions:    []string{payment.ActionRead, payment.ActionCreate, payment.ActionList},
				Identifier: payer.ID,
				Limits:     &payment.Limits{DebitAmount: &debit},
			}},
			Interact: &payment.Interact{
				Start: []string{payment.InteractRedirect},
				Finish: &payment.InteractFinish{
					Method: payment.InteractRedirect,
					URI:    finishURI,
					Nonce:  uc.idGenerator.NewID(),
				},
			},
		})
	})
	if err != nil {
		run.Fail("OUTGOING_GRANT_FAILED")
		return nil, err
	}
	if !grant.RequiresInteraction() || grant.Continuation == nil {
		run.Fail("NO_REDIRECT")
		return nil, payment.ErrNoRedirectReceived
	}

	entity, err := domain.New(checkoutID, payer, receiver, quote, *grant.Continuation)
	if err != nil {
		run.Fail("DOMAIN_CONSTRUCTION_FAILED")
		return nil, err
	}
	if err := uc.repo.Insert(ctx, entity); err != nil {
		run.Fail("REPO_INSERT_FAILED")
		return nil, fmt.Errorf("%w: %w", ErrRepository, err)
	}

	if uc.publisher != nil {
		if pubErr := uc.outbox.Do(ctx, "checkout.started", func(ctx context.Context) error {
			return uc.publisher.Publish(ctx, domain.NewStartedEvent(entity))
		}); pubErr != nil {
			run.With(observability.F("event_publish_error", pubErr.Error()))
		}
	}

	run.With(
		observability.F("checkout_id", checkoutID),
		observability.F("debit_amount", debit.Value),
	)
	span.SetAttributes(attribute.String("checkout.id", checkoutID))
	return &StartCheckoutResult{CheckoutID: checkoutID, RedirectURL: grant.InteractRedirect}, nil
}
