package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/openpayments-pos/app/internal/application"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/inventory"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/money"
	domain "github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/outbox"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/payment"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/observability"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/pkg/keylock"

	"go.opentelemetry.io/otel/attribute"
)

const (
	reconciliationService = "reconciliation-service"
	useCaseRefreshStatus  = "order.refresh_status"
)

var ErrRepository = errors.New("reconciliation: repository failure")

// StatusView is an order's payment state joined with its reconciliation state.
type StatusView struct {
	ID                    string            `json:"id"`
	OrderID               string            `json:"orderId"`
	State                 string            `json:"state,omitempty"`
	Completed             bool              `json:"completed"`
	WalletAddress         string            `json:"walletAddress"`
	ReceivedAmount        money.Amount      `json:"receivedAmount"`
	IncomingAmount        *money.Amount     `json:"incomingAmount,omitempty"`
	ExpiresAt             *time.Time        `json:"expiresAt,omitempty"`
	Metadata              map[string]any    `json:"metadata,omitempty"`
	InventoryReconciled   bool              `json:"inventoryUpdated"`
	InventoryReconciledAt *time.Time        `json:"inventoryUpdatedAt,omitempty"`
	InventoryError        string            `json:"inventoryError,omitempty"`
	Reconciliation        *inventory.Result `json:"reconciliation,omitempty"`
}

type RefreshStatusInput struct {
	OrderID string
}

// RefreshStatusUseCase reads the incoming payment of an order and, the first
// time it is seen completed, reconciles inventory for the order's lines.
type RefreshStatusUseCase struct {
	repo       domain.Repository
	client     payment.Client
	reconciler *Reconciler
	locks      *keylock.Locker
	publisher  domoutbox.Publisher
	now        func() time.Time

	inst     application.Instruments
	protocol *application.External
	outbox   *application.External
}

func NewRefreshStatusUseCase(
	repo domain.Repository,
	client payment.Client,
	reconciler *Reconciler,
	locks *keylock.Locker,
	publisher domoutbox.Publisher,
	timeouts application.Timeouts,
	tel observability.Observability,
) *RefreshStatusUseCase {
	if locks == nil {
		locks = keylock.New()
	}
	return &RefreshStatusUseCase{
		repo:       repo,
		client:     client,
		reconciler: reconciler,
		locks:      locks,
		publisher:  publisher,
		now:        time.Now,
		inst:       application.NewInstruments(tel, reconciliationService),
		protocol:   application.NewExternal(application.PeerOpenPayments, timeouts.Protocol, tel),
		outbox:     application.NewExternal(application.PeerOutbox, timeouts.Publish, tel),
	}
}

// Execute returns the current status view of an order.
func (uc *RefreshStatusUseCase) Execute(ctx context.Context, cmd RefreshStatusInput) (_ *StatusView, err error) {
	ctx, run := uc.inst.Start(ctx, useCaseRefreshStatus, "RefreshStatus",
		attribute.String("order.id", cmd.OrderID),
	)
	defer func() { run.End(ctx, err) }()
	run.With(observability.F("order_id", cmd.OrderID))

	o, err := uc.repo.Get(ctx, cmd.OrderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			run.Fail("ORDER_NOT_FOUND")
			return nil, err
		}
		run.Fail("REPO_GET_FAILED")
		return nil, fmt.Errorf("%w: %w", ErrRepository, err)
	}

	ip, err := application.Call(ctx, uc.protocol, "incoming_payment.get", func(ctx context.Context) (*payment.IncomingPayment, error) {
		return uc.client.GetIncomingPayment(ctx, o.IncomingPaymentURL)
	})
	if err != nil {
		run.Fail("INCOMING_PAYMENT_GET_FAILED")
		return nil, err
	}

	if ip.IsCompleted() && !o.InventoryReconciled && len(o.Lines) > 0 {
		o, err = uc.reconcile(ctx, run, o.ID)
		if err != nil {
			run.Fail("RECONCILIATION_STORE_FAILED")
			return nil, err
		}
	}

	run.Span().SetAttributes(
		attribute.Bool("payment.completed", ip.IsCompleted()),
		attribute.Bool("order.inventory_reconciled", o.InventoryReconciled),
	)
	return buildView(o, ip), nil
}

// reconcile runs at most once per order: concurrent callers wait on the order
// lock and then observe the stored result.
func (uc *RefreshStatusUseCase) reconcile(ctx context.Context, run *application.Execution, orderID string) (*domain.Order, error) {
	unlock, err := uc.locks.Lock(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	o, err := uc.repo.Get(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRepository, err)
	}
	if o.InventoryReconciled {
		return o, nil
	}

	result := uc.reconciler.Reconcile(ctx, o.Lines)

	// Stock may already be decremented; the outcome must be stored even if
	// the caller is gone, or the next refresh would decrement again.
	ctx, cancel := application.Detached(ctx)
	defer cancel()

	run.With(
		observability.F("lines_succeeded", result.Succeeded),
		observability.F("lines_failed", result.Failed),
		observability.F("lines_skipped", result.Skipped),
	)

	var event domoutbox.Event
	if result.Reconciled() {
		o, err = uc.repo.CompleteReconciliation(ctx, orderID, uc.now(), result)
		if errors.Is(err, domain.ErrAlreadyReconciled) {
			return o, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRepository, err)
		}
		run.SetStatus("INVENTORY_RECONCILED")
		event = domain.NewInventoryReconciledEvent(o)
	} else {
		o, err = uc.repo.RecordReconciliationFailure(ctx, orderID, result.FailureSummary(), result)
		if errors.Is(err, domain.ErrAlreadyReconciled) {
			return o, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRepository, err)
		}
		run.SetStatus("INVENTORY_RECONCILIATION_FAILED")
		event = domain.NewInventoryReconciliationFailedEvent(o)
	}

	if uc.publisher != nil {
		if pubErr := uc.outbox.Do(ctx, event.EventName(), func(ctx context.Context) error {
			return uc.publisher.Publish(ctx, event)
		}); pubErr != nil {
			run.With(observability.F("event_publish_error", pubErr.Error()))
		}
	}
	return o, nil
}

func buildView(o *domain.Order, ip *payment.IncomingPayment) *StatusView {
	v := &StatusView{
		ID:                    ip.ID,
		OrderID:               o.ID,
		State:                 ip.State,
		Completed:             ip.IsCompleted(),
		WalletAddress:         ip.WalletAddress,
		IncomingAmount:        ip.IncomingAmount,
		ExpiresAt:             ip.ExpiresAt,
		Metadata:              ip.Metadata,
		InventoryReconciled:   o.InventoryReconciled,
		InventoryReconciledAt: o.InventoryReconciledAt,
		InventoryError:        o.InventoryError,
		Reconciliation:        o.Reconciliation,
	}
	if ip.ReceivedAmount != nil {
		v.ReceivedAmount = *ip.ReceivedAmount
	} else {
		v.ReceivedAmount = money.Zero(o.Total.AssetCode, o.Total.AssetScale)
	}
	if v.WalletAddress == "" {
		v.WalletAddress = o.WalletAddress
	}
	return v
}
