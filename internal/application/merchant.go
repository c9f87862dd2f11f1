package application

import "time"

// Merchant is the receiving side's static configuration.
type Merchant struct {
	WalletAddressURL string
	AssetCode        string
	AssetScale       int
	FinishURL        string
}

// Timeouts bound each external call.
type Timeouts struct {
	Protocol  time.Duration
	Inventory time.Duration
	Publish   time.Duration
}

// Peers used for external_requests_total.
const (
	PeerOpenPayments = "open_payments"
	PeerInventory    = "inventory"
	PeerOutbox       = "outbox"
)
