package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/openpayments-pos/app/internal/application"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/money"
	domain "github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/outbox"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/payment"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/observability"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	orderService       = "order-service"
	useCaseOrderCreate = "order.create"
	paymentDescription = "POS Open Payments"
)

var ErrRepository = errors.New("order: repository failure")

// CreateOrderUseCase prices a cart, obtains an incoming-payment grant on the
// merchant wallet and creates the incoming payment the customer will pay.
type CreateOrderUseCase struct {
	repo        domain.Repository
	client      payment.Client
	idGenerator application.IDGenerator
	publisher   domoutbox.Publisher
	merchant    application.Merchant

	inst     application.Instruments
	protocol *application.External
	outbox   *application.External
}

func NewCreateOrderUseCase(
	repo domain.Repository,
	client payment.Client,
	idGen application.IDGenerator,
	publisher domoutbox.Publisher,
	merchant application.Merchant,
	timeouts application.Timeouts,
	tel observability.Observability,
) *CreateOrderUseCase {
	return &CreateOrderUseCase{
		repo:        repo,
		client:      client,
		idGenerator: idGen,
		publisher:   publisher,
		merchant:    merchant,
		inst:        application.NewInstruments(tel, orderService),
		protocol:    application.NewExternal(application.PeerOpenPayments, timeouts.Protocol, tel),
		outbox:      application.NewExternal(application.PeerOutbox, timeouts.Publish, tel),
	}
}

type CreateOrderInput struct {
	Lines []domain.Line
	// TaxPercent is a percentage such as "16"; empty means no tax.
	TaxPercent string
	// FinishURL overrides the merchant's interaction finish URL.
	FinishURL string
}

// CreateOrderResult carries either the stored order or, when the merchant
// grant needs user interaction, the URL to send the user to.
type CreateOrderResult struct {
	Order            *domain.Order
	InteractRedirect string
}

// Execute performs the order creation flow.
func (uc *CreateOrderUseCase) Execute(ctx context.Context, cmd CreateOrderInput) (_ *CreateOrderResult, err error) {
	ctx, run := uc.inst.Start(ctx, useCaseOrderCreate, "CreateOrder",
		attribute.Int("order.lines", len(cmd.Lines)),
	)
	defer func() { run.End(ctx, err) }()
	span := run.Span()

	if err := domain.ValidateLines(cmd.Lines); err != nil {
		run.Fail(validationStatus(err))
		return nil, err
	}
	if _, _, _, err := price(cmd.Lines, cmd.TaxPercent, uc.merchant.AssetScale); err != nil {
		run.Fail(validationStatus(err))
		return nil, err
	}

	wallet, err := application.Call(ctx, uc.protocol, "wallet_address.get", func(ctx context.Context) (*payment.WalletAddress, error) {
		return uc.client.GetWalletAddress(ctx, uc.merchant.WalletAddressURL)
	})
	if err != nil {
		run.Fail("WALLET_LOOKUP_FAILED")
		return nil, err
	}
	assetCode, assetScale := wallet.AssetCode, wallet.AssetScale
	if assetCode == "" {
		assetCode, assetScale = uc.merchant.AssetCode, uc.merchant.AssetScale
	}

	subtotal, tax, total, err := price(cmd.Lines, cmd.TaxPercent, assetScale)
	if err != nil {
		run.Fail(validationStatus(err))
		return nil, err
	}
	amount := func(v string) money.Amount {
		return money.Amount{Value: v, AssetCode: assetCode, AssetScale: assetScale}
	}
	span.SetAttributes(
		attribute.String("order.total", total),
		attribute.String("order.asset_code", assetCode),
	)

	finishURL := cmd.FinishURL
	if finishURL == "" {
		finishURL = uc.merchant.FinishURL
	}
	grant, err := application.Call(ctx, uc.protocol, "grant.request", func(ctx context.Context) (*payment.Grant, error) {
		return uc.client.RequestGrant(ctx, payment.GrantRequest{
			AuthServer: wallet.AuthServer,
			Access: []payment.AccessItem{{
				Type:    payment.AccessIncomingPayment,
				Actions: []string{payment.ActionCreate, payment.ActionRead, payment.ActionComplete},
			}},
			Interact: &payment.Interact{
				Start: []string{payment.InteractRedirect},
				Finish: &payment.InteractFinish{
					Method: payment.InteractRedirect,
					URI:    finishURL,
					Nonce:  uc.idGenerator.NewID(),
				},
			},
		})
	})
	if err != nil {
		run.Fail("GRANT_REQUEST_FAILED")
		return nil, err
	}
	if grant.RequiresInteraction() {
		run.SetStatus("INTERACTION_REQUIRED")
		span.AddEvent("order.interaction_required")
		return &CreateOrderResult{InteractRedirect: grant.InteractRedirect}, nil
	}
	if grant.AccessToken == "" {
		run.Fail("GRANT_WITHOUT_TOKEN")
		return nil, fmt.Errorf("grant.request: %w", payment.ErrMissingToken)
	}

	orderID := uc.idGenerator.NewID()
	incoming, err := application.Call(ctx, uc.protocol, "incoming_payment.create", func(ctx context.Context) (*payment.IncomingPayment, error) {
		return uc.client.CreateIncomingPayment(ctx, wallet.ResourceServer, grant.AccessToken, payment.IncomingPaymentRequest{
			WalletAddress:  wallet.ID,
			IncomingAmount: amount(total),
			Metadata: map[string]any{
				"description": paymentDescription,
				"orderId":     orderID,
				"items":       cmd.Lines,
				"subtotal":    subtotal,
				"tax":         tax,
				"total":       total,
			},
		})
	})
	if err != nil {
		run.Fail("INCOMING_PAYMENT_FAILED")
		return nil, err
	}

	entity, err := domain.New(orderID, incoming.ID, wallet.ID, cmd.Lines, cmd.TaxPercent, amount(subtotal), amount(tax), amount(total))
	if err != nil {
		run.Fail("DOMAIN_CONSTRUCTION_FAILED")
		return nil, fmt.Errorf("order: construct: %w", err)
	}
	if err := uc.repo.Insert(ctx, entity); err != nil {
		run.Fail("REPO_INSERT_FAILED")
		return nil, fmt.Errorf("%w: %w", ErrRepository, err)
	}

	if uc.publisher != nil {
		if pubErr := uc.outbox.Do(ctx, "order.created", func(ctx context.Context) error {
			return uc.publisher.Publish(ctx, domain.NewCreatedEvent(entity))
		}); pubErr != nil {
			run.SetStatus("EVENT_PUBLISH_FAILED")
			run.With(observability.F("event_publish_error", pubErr.Error()))
		}
	}

	run.With(
		observability.F("order_id", entity.ID),
		observability.F("total", total),
	)
	span.AddEvent("order.created", trace.WithAttributes(
		attribute.String("order.id", entity.ID),
		attribute.String("order.incoming_payment", entity.IncomingPaymentURL),
	))
	return &CreateOrderResult{Order: entity}, nil
}

// price computes subtotal, tax and total as scaled values.
func price(lines []domain.Line, taxPercent string, scale int) (subtotal, tax, total string, err error) {
	lineTotals := make([]string, 0, len(lines))
	for i, l := range lines {
		lineTotal, err := money.MultiplyByQuantity(l.UnitPrice, l.Quantity, scale)
		if err != nil {
			return "", "", "", fmt.Errorf("line %d: %w", i, err)
		}
		lineTotals = append(lineTotals, lineTotal)
	}
	if subtotal, err = money.Sum(lineTotals...); err != nil {
		return "", "", "", err
	}
	if tax, err = money.PercentOf(subtotal, taxPercent); err != nil {
		return "", "", "", err
	}
	if total, err = money.Add(subtotal, tax); err != nil {
		return "", "", "", err
	}
	if !money.IsPositive(total) {
		return "", "", "", money.ErrNegativeOrZeroTotal
	}
	return subtotal, tax, total, nil
}

func validationStatus(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyCart):
		return "EMPTY_CART"
	case errors.Is(err, domain.ErrInvalidLine):
		return "INVALID_LINE"
	case errors.Is(err, money.ErrNegativeOrZeroTotal):
		return "NON_POSITIVE_TOTAL"
	case errors.Is(err, money.ErrInvalidAmount):
		return "INVALID_AMOUNT"
	}
	return "VALIDATION_FAILED"
}
