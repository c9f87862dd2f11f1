// Package openpayments is a JSON-over-HTTP client for Open Payments wallets
// and GNAP authorization servers.
package openpayments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/payment"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const (
	contentJSON   = "application/json"
	maxErrorBody  = 64 << 10
	authScheme    = "GNAP "
	defaultClient = 30 * time.Second
)

// Signer adds request signatures before a request is sent. body is the
// exact payload, or nil for requests without one.
type Signer interface {
	Sign(req *http.Request, body []byte) error
}

type Options struct {
	// ClientWallet identifies this service in grant requests.
	ClientWallet string
	Signer       Signer
	HTTPClient   *http.Client
}

// Client implements payment.Client.
type Client struct {
	wallet string
	signer Signer
	http   *http.Client
}

var _ payment.Client = (*Client)(nil)

func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultClient}
	}
	return &Client{wallet: opts.ClientWallet, signer: opts.Signer, http: hc}
}

func (c *Client) GetWalletAddress(ctx context.Context, url string) (*payment.WalletAddress, error) {
	var w payment.WalletAddress
	if err := c.do(ctx, http.MethodGet, url, "", nil, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

func (c *Client) RequestGrant(ctx context.Context, req payment.GrantRequest) (*payment.Grant, error) {
	body := grantRequestBody{
		AccessToken: accessTokenRequest{Access: req.Access},
		Client:      c.wallet,
		Interact:    req.Interact,
	}
	var resp grantResponse
	if err := c.do(ctx, http.MethodPost, req.AuthServer, "", body, &resp); err != nil {
		return nil, err
	}
	return resp.grant(), nil
}

func (c *Client) ContinueGrant(ctx context.Context, cont payment.Continuation, interactRef string) (*payment.Grant, error) {
	body := map[string]string{"interact_ref": interactRef}
	var resp grantResponse
	if err := c.do(ctx, http.MethodPost, cont.URI, cont.AccessToken, body, &resp); err != nil {
		return nil, err
	}
	return resp.grant(), nil
}

func (c *Client) CreateIncomingPayment(ctx context.Context, resourceServer, accessToken string, req payment.IncomingPaymentRequest) (*payment.IncomingPayment, error) {
	body := incomingPaymentBody{
		WalletAddress:  req.WalletAddress,
		IncomingAmount: req.IncomingAmount,
		ExpiresAt:      req.ExpiresAt,
		Metadata:       req.Metadata,
	}
	var p payment.IncomingPayment
	if err := c.do(ctx, http.MethodPost, join(resourceServer, "incoming-payments"), accessToken, body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) GetIncomingPayment(ctx context.Context, url string) (*payment.IncomingPayment, error) {
	var p payment.IncomingPayment
	if err := c.do(ctx, http.MethodGet, url, "", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) CreateQuote(ctx context.Context, resourceServer, accessToken string, req payment.QuoteRequest) (*payment.Quote, error) {
	body := quoteBody{WalletAddress: req.WalletAddress, Receiver: req.Receiver, Method: req.Method}
	var q payment.Quote
	if err := c.do(ctx, http.MethodPost, join(resourceServer, "quotes"), accessToken, body, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

func (c *Client) CreateOutgoingPayment(ctx context.Context, resourceServer, accessToken string, req payment.OutgoingPaymentRequest) (*payment.OutgoingPayment, error) {
	body := outgoingPaymentBody{WalletAddress: req.WalletAddress, QuoteID: req.QuoteID, Metadata: req.Metadata}
	var p payment.OutgoingPayment
	if err := c.do(ctx, http.MethodPost, join(resourceServer, "outgoing-payments"), accessToken, body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) do(ctx context.Context, method, url, token string, in, out any) error {
	op := method + " " + url

	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("%s: encode: %w", op, err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", contentJSON)
	if payload != nil {
		req.Header.Set("Content-Type", contentJSON)
	}
	if token != "" {
		req.Header.Set("Authorization", authScheme+token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	if c.signer != nil {
		if err := c.signer.Sign(req, payload); err != nil {
			return fmt.Errorf("%s: sign: %w", op, err)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return protocolError(op, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &payment.ProtocolError{Op: op, Status: http.StatusBadGateway, Message: "malformed response: " + err.Error()}
	}
	return nil
}

func protocolError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	pe := &payment.ProtocolError{Op: op, Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	var body struct {
		Message string `json:"message"`
		Error   any    `json:"error"`
	}
	if json.Unmarshal(raw, &body) != nil {
		if s := strings.TrimSpace(string(raw)); s != "" {
			pe.Details = s
		}
		return pe
	}
	var details any
	_ = json.Unmarshal(raw, &details)
	pe.Details = details

	switch e := body.Error.(type) {
	case string:
		pe.Message = e
	case map[string]any:
		if d, ok := e["description"].(string); ok && d != "" {
			pe.Message = d
		} else if code, ok := e["code"].(string); ok && code != "" {
			pe.Message = code
		}
	}
	if body.Message != "" {
		pe.Message = body.Message
	}
	return pe
}

func join(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + path
}
