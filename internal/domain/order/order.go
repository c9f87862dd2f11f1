package order

import (
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/inventory"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/money"
)

var (
	ErrNotFound          = errors.New("order: not found")
	ErrConflict          = errors.New("order: already exists")
	ErrEmptyCart         = errors.New("order: cart is empty")
	ErrInvalidLine       = errors.New("order: invalid cart line")
	ErrAlreadyReconciled = errors.New("order: inventory already reconciled")
)

// Line is a cart line copied into the order at creation.
type Line struct {
	ProductID string `json:"id,omitempty"`
	Name      string `json:"name"`
	UnitPrice string `json:"unitPrice"`
	Quantity  int    `json:"qty"`
}

// Order is a receiver-initiated charge backed by one incoming payment.
type Order struct {
	ID                    string
	IncomingPaymentURL    string
	WalletAddress         string
	Lines                 []Line
	TaxPercent            string
	Subtotal              money.Amount
	Tax                   money.Amount
	Total                 money.Amount
	InventoryReconciled   bool
	InventoryReconciledAt *time.Time
	InventoryError        string
	Reconciliation        *inventory.Result
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// ValidateLines checks the cart before any external call is made.
func ValidateLines(lines []Line) error {
	if len(lines) == 0 {
		return ErrEmptyCart
	}
	for i, l := range lines {
		if l.Quantity <= 0 {
			return fmt.Errorf("%w: line %d quantity %d", ErrInvalidLine, i, l.Quantity)
		}
		if l.UnitPrice == "" {
			return fmt.Errorf("%w: line %d has no unit price", ErrInvalidLine, i)
		}
	}
	return nil
}

// New builds an order for an incoming payment that already exists.
func New(id, incomingPaymentURL, walletAddress string, lines []Line, taxPercent string, subtotal, tax, total money.Amount) (*Order, error) {
	if id == "" || incomingPaymentURL == "" {
		return nil, fmt.Errorf("order: id and incoming payment url are required")
	}
	if err := ValidateLines(lines); err != nil {
		return nil, err
	}
	if !subtotal.Compatible(total) || !tax.Compatible(total) {
		return nil, fmt.Errorf("%w: subtotal %s, tax %s, total %s", money.ErrAssetMismatch, subtotal, tax, total)
	}
	if !money.IsPositive(total.Value) {
		return nil, money.ErrNegativeOrZeroTotal
	}
	if sum, err := money.Add(subtotal.Value, tax.Value); err != nil || sum != total.Value {
		return nil, fmt.Errorf("%w: total %s != subtotal %s + tax %s", money.ErrInvalidAmount, total.Value, subtotal.Value, tax.Value)
	}

	now := time.Now().UTC()
	return &Order{
		ID:                 id,
		IncomingPaymentURL: incomingPaymentURL,
		WalletAddress:      walletAddress,
		Lines:              append([]Line(nil), lines...),
		TaxPercent:         taxPercent,
		Subtotal:           subtotal,
		Tax:                tax,
		Total:              total,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// MarkReconciled is the single false->true transition of InventoryReconciled.
func (o *Order) MarkReconciled(at time.Time, result *inventory.Result) error {
	if o.InventoryReconciled {
		return ErrAlreadyReconciled
	}
	at = at.UTC()
	o.InventoryReconciled = true
	o.InventoryReconciledAt = &at
	// Lines that failed alongside successful ones stay visible for follow-up.
	o.InventoryError = result.FailureSummary()
	o.Reconciliation = result.Clone()
	o.touch()
	return nil
}

// RecordReconciliationFailure stores why reconciliation did not happen. It never
// overwrites a successful reconciliation.
func (o *Order) RecordReconciliationFailure(reason string, result *inventory.Result) error {
	if o.InventoryReconciled {
		return ErrAlreadyReconciled
	}
	o.InventoryError = reason
	o.Reconciliation = result.Clone()
	o.touch()
	return nil
}

// Reconcilable reports whether reconciliation could ever touch stock: at least
// one line names a product with a positive quantity.
func (o *Order) Reconcilable() bool {
	for _, l := range o.Lines {
		if l.ProductID != "" && l.Quantity > 0 {
			return true
		}
	}
	return false
}

// Cursor is the order's position for sweeps.
func (o *Order) Cursor() Cursor {
	return Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
}

// Clone returns a deep copy safe to hand out of a store.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Lines = append([]Line(nil), o.Lines...)
	if o.InventoryReconciledAt != nil {
		at := *o.InventoryReconciledAt
		c.InventoryReconciledAt = &at
	}
	c.Reconciliation = o.Reconciliation.Clone()
	return &c
}

func (o *Order) touch() {
	o.UpdatedAt = time.Now().UTC()
}
