package payment

import "context"

// Client speaks the Open Payments protocol. Resource calls take the resource
// server URL and the access token from the grant that authorizes them.
type Client interface {
	GetWalletAddress(ctx context.Context, url string) (*WalletAddress, error)
	RequestGrant(ctx context.Context, req GrantRequest) (*Grant, error)
	ContinueGrant(ctx context.Context, cont Continuation, interactRef string) (*Grant, error)
	CreateIncomingPayment(ctx context.Context, resourceServer, accessToken string, req IncomingPaymentRequest) (*IncomingPayment, error)
	// GetIncomingPayment reads a payment without authorization.
	GetIncomingPayment(ctx context.Context, url string) (*IncomingPayment, error)
	CreateQuote(ctx context.Context, resourceServer, accessToken string, req QuoteRequest) (*Quote, error)
	CreateOutgoingPayment(ctx context.Context, resourceServer, accessToken string, req OutgoingPaymentRequest) (*OutgoingPayment, error)
}
