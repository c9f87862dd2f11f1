// Package payment describes the Open Payments resources the service exchanges
// with wallets and authorization servers.
package payment

import (
	"time"

	"github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/money"
)

// Access types and actions requested in grants.
const (
	AccessIncomingPayment = "incoming-payment"
	AccessOutgoingPayment = "outgoing-payment"
	AccessQuote           = "quote"

	ActionCreate   = "create"
	ActionRead     = "read"
	ActionList     = "list"
	ActionComplete = "complete"

	InteractRedirect = "redirect"

	MethodILP = "ilp"

	StateCompleted = "completed"
)

// WalletAddress is the public description of a wallet.
type WalletAddress struct {
	ID             string `json:"id"`
	PublicName     string `json:"publicName,omitempty"`
	AssetCode      string `json:"assetCode"`
	AssetScale     int    `json:"assetScale"`
	AuthServer     string `json:"authServer"`
	ResourceServer string `json:"resourceServer"`
}

// Limits bounds what an outgoing-payment grant may spend.
type Limits struct {
	DebitAmount   *money.Amount `json:"debitAmount,omitempty"`
	ReceiveAmount *money.Amount `json:"receiveAmount,omitempty"`
}

// AccessItem is one entry of a grant's access_token.access list.
type AccessItem struct {
	Type       string   `json:"type"`
	Actions    []string `json:"actions"`
	Identifier string   `json:"identifier,omitempty"`
	Limits     *Limits  `json:"limits,omitempty"`
}

// InteractFinish tells the authorization server where to send the user back.
type InteractFinish struct {
	Method string `json:"method"`
	URI    string `json:"uri"`
	Nonce  string `json:"nonce"`
}

// Interact requests a user interaction before the grant is issued.
type Interact struct {
	Start  []string        `json:"start"`
	Finish *InteractFinish `json:"finish,omitempty"`
}

// GrantRequest asks authServer for access. Interact is nil for non-interactive grants.
type GrantRequest struct {
	AuthServer string
	Access     []AccessItem
	Interact   *Interact
}

// Continuation holds what is needed to continue a pending grant.
type Continuation struct {
	URI         string `json:"uri"`
	AccessToken string `json:"accessToken"`
	Wait        int    `json:"wait,omitempty"`
}

// Grant is the authorization server's answer. Exactly one of AccessToken or
// InteractRedirect is normally populated.
type Grant struct {
	AccessToken      string
	ManageURL        string
	InteractRedirect string
	Continuation     *Continuation
}

// RequiresInteraction reports whether the user must visit InteractRedirect.
func (g *Grant) RequiresInteraction() bool {
	return g != nil && g.InteractRedirect != ""
}

// IncomingPaymentRequest creates a payment on the receiving wallet.
type IncomingPaymentRequest struct {
	WalletAddress  string
	IncomingAmount money.Amount
	ExpiresAt      *time.Time
	Metadata       map[string]any
}

// IncomingPayment is the receiving side of a payment.
type IncomingPayment struct {
	ID             string         `json:"id"`
	WalletAddress  string         `json:"walletAddress"`
	State          string         `json:"state,omitempty"`
	Completed      bool           `json:"completed"`
	IncomingAmount *money.Amount  `json:"incomingAmount,omitempty"`
	ReceivedAmount *money.Amount  `json:"receivedAmount,omitempty"`
	ExpiresAt      *time.Time     `json:"expiresAt,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      *time.Time     `json:"createdAt,omitempty"`
}

// IsCompleted reports completion by flag or by state.
func (p *IncomingPayment) IsCompleted() bool {
	return p != nil && (p.Completed || p.State == StateCompleted)
}

// QuoteRequest prices a payment from WalletAddress to Receiver.
type QuoteRequest struct {
	WalletAddress string
	Receiver      string
	Method        string
}

// Quote is a priced payment offer.
type Quote struct {
	ID            string       `json:"id"`
	WalletAddress string       `json:"walletAddress"`
	Receiver      string       `json:"receiver"`
	DebitAmount   money.Amount `json:"debitAmount"`
	ReceiveAmount money.Amount `json:"receiveAmount"`
	ExpiresAt     *time.Time   `json:"expiresAt,omitempty"`
}

// OutgoingPaymentRequest executes a quote on the payer's wallet.
type OutgoingPaymentRequest struct {
	WalletAddress string
	QuoteID       string
	Metadata      map[string]any
}

// OutgoingPayment is the sending side of a payment.
type OutgoingPayment struct {
	ID            string         `json:"id"`
	WalletAddress string         `json:"walletAddress"`
	QuoteID       string         `json:"quoteId,omitempty"`
	Failed        bool           `json:"failed"`
	DebitAmount   *money.Amount  `json:"debitAmount,omitempty"`
	SentAmount    *money.Amount  `json:"sentAmount,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}
