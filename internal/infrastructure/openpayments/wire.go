package openpayments

import (
	"time"

	"github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/money"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/payment"
)

type accessTokenRequest struct {
	Access []payment.AccessItem `json:"access"`
}

type grantRequestBody struct {
	AccessToken accessTokenRequest `json:"access_token"`
	Client      string             `json:"client,omitempty"`
	Interact    *payment.Interact  `json:"interact,omitempty"`
}

type tokenValue struct {
	Value  string `json:"value"`
	Manage string `json:"manage,omitempty"`
}

type grantResponse struct {
	AccessToken *tokenValue `json:"access_token,omitempty"`
	Interact    *struct {
		Redirect string `json:"redirect"`
		Finish   string `json:"finish,omitempty"`
	} `json:"interact,omitempty"`
	Continue *struct {
		URI         string     `json:"uri"`
		AccessToken tokenValue `json:"access_token"`
		Wait        int        `json:"wait,omitempty"`
	} `json:"continue,omitempty"`
}

func (r grantResponse) grant() *payment.Grant {
	g := &payment.Grant{}
	if r.AccessToken != nil {
		g.AccessToken = r.AccessToken.Value
		g.ManageURL = r.AccessToken.Manage
	}
	if r.Interact != nil {
		g.InteractRedirect = r.Interact.Redirect
	}
	if r.Continue != nil {
		g.Continuation = &payment.Continuation{
			URI:         r.Continue.URI,
			AccessToken: r.Continue.AccessToken.Value,
			Wait:        r.Continue.Wait,
		}
	}
	return g
}

type incomingPaymentBody struct {
	WalletAddress  string         `json:"walletAddress"`
	IncomingAmount money.Amount   `json:"incomingAmount"`
	ExpiresAt      *time.Time     `json:"expiresAt,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

type quoteBody struct {
	WalletAddress string `json:"walletAddress"`
	Receiver      string `json:"receiver"`
	Method        string `json:"method"`
}

type outgoingPaymentBody struct {
	WalletAddress string         `json:"walletAddress"`
	QuoteID       string         `json:"quoteId"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}
