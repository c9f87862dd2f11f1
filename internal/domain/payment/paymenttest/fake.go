// Package paymenttest provides an in-memory payment.Client for tests.
package paymenttest

import (
	"context"
	"fmt"
	"sync"

	"github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/money"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/payment"
)

// Client is a scriptable payment.Client. Zero-value hooks fall back to
// well-behaved defaults; every call is counted by method name.
type Client struct {
	mu    sync.Mutex
	calls map[string]int

	Wallets          map[string]*payment.WalletAddress
	IncomingPayments map[string]*payment.IncomingPayment

	GetWalletAddressFunc      func(ctx context.Context, url string) (*payment.WalletAddress, error)
	RequestGrantFunc          func(ctx context.Context, req payment.GrantRequest) (*payment.Grant, error)
	ContinueGrantFunc         func(ctx context.Context, cont payment.Continuation, interactRef string) (*payment.Grant, error)
	CreateIncomingPaymentFunc func(ctx context.Context, rs, token string, req payment.IncomingPaymentRequest) (*payment.IncomingPayment, error)
	GetIncomingPaymentFunc    func(ctx context.Context, url string) (*payment.IncomingPayment, error)
	CreateQuoteFunc           func(ctx context.Context, rs, token string, req payment.QuoteRequest) (*payment.Quote, error)
	CreateOutgoingPaymentFunc func(ctx context.Context, rs, token string, req payment.OutgoingPaymentRequest) (*payment.OutgoingPayment, error)

	GrantRequests    []payment.GrantRequest
	IncomingRequests []payment.IncomingPaymentRequest
	OutgoingRequests []payment.OutgoingPaymentRequest
}

func New() *Client {
	return &Client{
		calls:            make(map[string]int),
		Wallets:          make(map[string]*payment.WalletAddress),
		IncomingPayments: make(map[string]*payment.IncomingPayment),
	}
}

// AddWallet registers a wallet served by the default GetWalletAddress.
func (c *Client) AddWallet(w *payment.WalletAddress) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Wallets[w.ID] = w
}

// SetIncomingPayment stores or replaces an incoming payment.
func (c *Client) SetIncomingPayment(p *payment.IncomingPayment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *p
	c.IncomingPayments[p.ID] = &cp
}

// CompleteIncomingPayment flags a stored incoming payment as completed.
func (c *Client) CompleteIncomingPayment(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.IncomingPayments[id]; ok {
		p.Completed = true
		p.State = payment.StateCompleted
		if p.IncomingAmount != nil {
			received := *p.IncomingAmount
			p.ReceivedAmount = &received
		}
	}
}

// Calls returns how often method was invoked.
func (c *Client) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

func (c *Client) count(method string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[method]++
}

func (c *Client) GetWalletAddress(ctx context.Context, url string) (*payment.WalletAddress, error) {
	c.count("GetWalletAddress")
	if c.GetWalletAddressFunc != nil {
		return c.GetWalletAddressFunc(ctx, url)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.Wallets[url]
	if !ok {
		return nil, &payment.ProtocolError{Op: "GET " + url, Status: 404, Message: "wallet address not found"}
	}
	cp := *w
	return &cp, nil
}

func (c *Client) RequestGrant(ctx context.Context, req payment.GrantRequest) (*payment.Grant, error) {
	c.count("RequestGrant")
	c.mu.Lock()
	c.GrantRequests = append(c.GrantRequests, req)
	c.mu.Unlock()
	if c.RequestGrantFunc != nil {
		return c.RequestGrantFunc(ctx, req)
	}
	if req.Interact != nil && req.Access[0].Type == payment.AccessOutgoingPayment {
		return &payment.Grant{
			InteractRedirect: req.AuthServer + "/interact/1",
			Continuation:     &payment.Continuation{URI: req.AuthServer + "/continue/1", AccessToken: "continue-token"},
		}, nil
	}
	return &payment.Grant{AccessToken: req.Access[0].Type + "-token"}, nil
}

func (c *Client) ContinueGrant(ctx context.Context, cont payment.Continuation, interactRef string) (*payment.Grant, error) {
	c.count("ContinueGrant")
	if c.ContinueGrantFunc != nil {
		return c.ContinueGrantFunc(ctx, cont, interactRef)
	}
	return &payment.Grant{AccessToken: "outgoing-payment-token"}, nil
}

func (c *Client) CreateIncomingPayment(ctx context.Context, rs, token string, req payment.IncomingPaymentRequest) (*payment.IncomingPayment, error) {
	c.count("CreateIncomingPayment")
	c.mu.Lock()
	c.IncomingRequests = append(c.IncomingRequests, req)
	n := len(c.IncomingRequests)
	c.mu.Unlock()
	if c.CreateIncomingPaymentFunc != nil {
		return c.CreateIncomingPaymentFunc(ctx, rs, token, req)
	}
	amount := req.IncomingAmount
	p := &payment.IncomingPayment{
		ID:             fmt.Sprintf("%s/incoming-payments/%d", rs, n),
		WalletAddress:  req.WalletAddress,
		State:          "pending",
		IncomingAmount: &amount,
		Metadata:       req.Metadata,
	}
	c.SetIncomingPayment(p)
	return p, nil
}

func (c *Client) GetIncomingPayment(ctx context.Context, url string) (*payment.IncomingPayment, error) {
	c.count("GetIncomingPayment")
	if c.GetIncomingPaymentFunc != nil {
		return c.GetIncomingPaymentFunc(ctx, url)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.IncomingPayments[url]
	if !ok {
		return nil, &payment.ProtocolError{Op: "GET " + url, Status: 404, Message: "incoming payment not found"}
	}
	cp := *p
	return &cp, nil
}

func (c *Client) CreateQuote(ctx context.Context, rs, token string, req payment.QuoteRequest) (*payment.Quote, error) {
	c.count("CreateQuote")
	if c.CreateQuoteFunc != nil {
		return c.CreateQuoteFunc(ctx, rs, token, req)
	}
	return &payment.Quote{
		ID:            rs + "/quotes/1",
		WalletAddress: req.WalletAddress,
		Receiver:      req.Receiver,
		DebitAmount:   money.Amount{Value: "7200", AssetCode: "MXN", AssetScale: 2},
		ReceiveAmount: money.Amount{Value: "7076", AssetCode: "MXN", AssetScale: 2},
	}, nil
}

func (c *Client) CreateOutgoingPayment(ctx context.Context, rs, token string, req payment.OutgoingPaymentRequest) (*payment.OutgoingPayment, error) {
	c.count("CreateOutgoingPayment")
	c.mu.Lock()
	c.OutgoingRequests = append(c.OutgoingRequests, req)
	c.mu.Unlock()
	if c.CreateOutgoingPaymentFunc != nil {
		return c.CreateOutgoingPaymentFunc(ctx, rs, token, req)
	}
	return &payment.OutgoingPayment{
		ID:            rs + "/outgoing-payments/1",
		WalletAddress: req.WalletAddress,
		QuoteID:       req.QuoteID,
		Metadata:      req.Metadata,
	}, nil
}
