package httppresentation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Zhima-Mochi/openpayments-pos/app/internal/application"
	appcheckout "github.com/Zhima-Mochi/openpayments-pos/app/internal/application/checkout"
	appmerchant "github.com/Zhima-Mochi/openpayments-pos/app/internal/application/merchant"
	apporder "github.com/Zhima-Mochi/openpayments-pos/app/internal/application/order"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/application/reconciliation"
	domcheckout "github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/checkout"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/money"
	domorder "github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/order"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/payment"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/observability"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/observability/obstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type useCaseFunc[C, R any] func(context.Context, C) (R, error)

func (f useCaseFunc[C, R]) Execute(ctx context.Context, c C) (R, error) { return f(ctx, c) }

func mxn(v string) money.Amount { return money.Amount{Value: v, AssetCode: "MXN", AssetScale: 2} }

type apiFixture struct {
	uc  UseCases
	rec *obstest.Recorder

	lastOrder  apporder.CreateOrderInput
	lastStart  appcheckout.StartCheckoutInput
	lastFinish appcheckout.FinishCheckoutInput
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	f := &apiFixture{rec: obstest.New()}
	f.uc = UseCases{
		CreateOrder: useCaseFunc[apporder.CreateOrderInput, *apporder.CreateOrderResult](
			func(_ context.Context, in apporder.CreateOrderInput) (*apporder.CreateOrderResult, error) {
				f.lastOrder = in
				if len(in.Lines) == 0 {
					return nil, domorder.ErrEmptyCart
				}
				return &apporder.CreateOrderResult{Order: &domorder.Order{
					ID:                 "o-1",
					IncomingPaymentURL: "https://ilp.example/incoming-payments/1",
					Total:              mxn("7076"),
				}}, nil
			}),
		RefreshStatus: useCaseFunc[reconciliation.RefreshStatusInput, *reconciliation.StatusView](
			func(_ context.Context, in reconciliation.RefreshStatusInput) (*reconciliation.StatusView, error) {
				if in.OrderID != "o-1" {
					return nil, domorder.ErrNotFound
				}
				return &reconciliation.StatusView{ID: "ip-1", OrderID: "o-1", Completed: true, ReceivedAmount: mxn("7076"), InventoryReconciled: true}, nil
			}),
		StartCheckout: useCaseFunc[appcheckout.StartCheckoutInput, *appcheckout.StartCheckoutResult](
			func(_ context.Context, in appcheckout.StartCheckoutInput) (*appcheckout.StartCheckoutResult, error) {
				f.lastStart = in
				return &appcheckout.StartCheckoutResult{CheckoutID: "c-1", RedirectURL: "https://auth.example/interact/1"}, nil
			}),
		FinishCheckout: useCaseFunc[appcheckout.FinishCheckoutInput, *appcheckout.FinishCheckoutResult](
			func(_ context.Context, in appcheckout.FinishCheckoutInput) (*appcheckout.FinishCheckoutResult, error) {
				f.lastFinish = in
				return &appcheckout.FinishCheckoutResult{OutgoingPaymentID: "op-1"}, nil
			}),
		DescribeMerchant: useCaseFunc[struct{}, appmerchant.Description](
			func(context.Context, struct{}) (appmerchant.Description, error) {
				return appmerchant.Description{WalletAddressURL: "https://ilp.example/shop", AssetCode: "MXN", AssetScale: 2, InventoryBackend: "memory"}, nil
			}),
	}
	return f
}

func (f *apiFixture) serve(t *testing.T, opts Options, method, target, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	router := NewHandler(f.uc, opts, f.rec).Router()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	f := newAPI(t)
	rec := f.serve(t, Options{}, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(headerRequestID))
}

func TestConfig(t *testing.T) {
	f := newAPI(t)
	rec := f.serve(t, Options{}, http.MethodGet, "/config", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "https://ilp.example/shop", body["merchantWalletAddressUrl"])
	assert.Equal(t, "MXN", body["assetCode"])
	assert.EqualValues(t, 2, body["assetScale"])
}

func TestCreateOrderAcceptsNumericFieldsAndLegacyTaxRate(t *testing.T) {
	f := newAPI(t)
	rec := f.serve(t, Options{}, http.MethodPost, "/pos/create-order",
		`{"items":[{"id":7,"name":"Café","unitPrice":18.00,"qty":2,"emoji":"☕"},{"id":"p-2","unitPrice":"25.00","qty":1}],"taxRate":0.16}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, "o-1", body["orderId"])
	assert.Equal(t, "https://ilp.example/incoming-payments/1", body["paymentUrl"])
	assert.Equal(t, "7076", body["total"])

	require.Len(t, f.lastOrder.Lines, 2)
	assert.Equal(t, "7", f.lastOrder.Lines[0].ProductID)
	assert.Equal(t, "18.00", f.lastOrder.Lines[0].UnitPrice)
	assert.Equal(t, 2, f.lastOrder.Lines[0].Quantity)
	assert.Equal(t, "16", f.lastOrder.TaxPercent)
}

func TestCreateOrderPrefersTaxPercent(t *testing.T) {
	f := newAPI(t)
	rec := f.serve(t, Options{}, http.MethodPost, "/pos/create-order",
		`{"items":[{"unitPrice":"1.00","qty":1}],"taxPercent":"8","taxRate":0.16,"finishUrl":"http://pos/done"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "8", f.lastOrder.TaxPercent)
	assert.Equal(t, "http://pos/done", f.lastOrder.FinishURL)
}

func TestCreateOrderErrors(t *testing.T) {
	f := newAPI(t)

	rec := f.serve(t, Options{}, http.MethodPost, "/pos/create-order", `{"items":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "empty")

	rec = f.serve(t, Options{}, http.MethodPost, "/pos/create-order", `{"items":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.serve(t, Options{}, http.MethodPost, "/pos/create-order", `{"items":[{"unitPrice":"1","qty":1}],"taxRate":"-1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateOrderInteractionRequired(t *testing.T) {
	f := newAPI(t)
	f.uc.CreateOrder = useCaseFunc[apporder.CreateOrderInput, *apporder.CreateOrderResult](
		func(context.Context, apporder.CreateOrderInput) (*apporder.CreateOrderResult, error) {
			return &apporder.CreateOrderResult{InteractRedirect: "https://auth.example/interact/m"}, nil
		})

	rec := f.serve(t, Options{}, http.MethodPost, "/pos/create-order", `{"items":[{"unitPrice":"1","qty":1}]}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "https://auth.example/interact/m", body["interactRedirect"])
	assert.NotEmpty(t, body["error"])
}

func TestOrderStatus(t *testing.T) {
	f := newAPI(t)

	rec := f.serve(t, Options{}, http.MethodGet, "/pos/order-status?orderId=o-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode(t, rec)["status"].(map[string]any)
	assert.Equal(t, true, status["completed"])
	assert.Equal(t, true, status["inventoryUpdated"])
	assert.Equal(t, "7076", status["receivedAmount"].(map[string]any)["value"])

	rec = f.serve(t, Options{}, http.MethodGet, "/pos/order-status?orderId=nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.serve(t, Options{}, http.MethodGet, "/pos/order-status", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckoutRoutes(t *testing.T) {
	f := newAPI(t)

	rec := f.serve(t, Options{}, http.MethodPost, "/checkout/start",
		`{"customerWalletAddressUrl":"$ilp.example/alice","receiverPaymentUrl":"https://ilp.example/incoming-payments/1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "c-1", body["checkoutId"])
	assert.Equal(t, "https://auth.example/interact/1", body["interactRedirect"])
	assert.Equal(t, "$ilp.example/alice", f.lastStart.PayerPointer)

	rec = f.serve(t, Options{}, http.MethodPost, "/checkout/finish", `{"checkoutId":"c-1","interactRef":"r-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "op-1", body["outgoingPaymentId"])
	assert.Equal(t, "r-1", f.lastFinish.InteractRef)

	rec = f.serve(t, Options{}, http.MethodPost, "/checkout/finish", `{"checkoutId":"c-1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDomainErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{payment.ErrInvalidPointer, http.StatusBadRequest},
		{domcheckout.ErrInvalidReceiver, http.StatusBadRequest},
		{domcheckout.ErrNotFound, http.StatusNotFound},
		{domcheckout.ErrContinuationConsumed, http.StatusConflict},
		{domcheckout.ErrFinishAttemptsExhausted, http.StatusConflict},
		{payment.ErrNoRedirectReceived, http.StatusInternalServerError},
		{fmt.Errorf("quote.create: %w after 10s", application.ErrTimeout), http.StatusGatewayTimeout},
		{fmt.Errorf("grant.request: %w", &payment.ProtocolError{Op: "POST /", Status: 401, Message: "invalid signature", Details: "bad key"}), http.StatusUnauthorized},
		{&payment.ProtocolError{Op: "POST /", Message: "no status"}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			f := newAPI(t)
			f.uc.StartCheckout = useCaseFunc[appcheckout.StartCheckoutInput, *appcheckout.StartCheckoutResult](
				func(context.Context, appcheckout.StartCheckoutInput) (*appcheckout.StartCheckoutResult, error) {
					return nil, tc.err
				})
			rec := f.serve(t, Options{}, http.MethodPost, "/checkout/start", `{}`)
			assert.Equal(t, tc.status, rec.Code)
			assert.NotEmpty(t, decode(t, rec)["error"])
		})
	}
}

func TestProtocolErrorDetailsAreForwarded(t *testing.T) {
	f := newAPI(t)
	f.uc.RefreshStatus = useCaseFunc[reconciliation.RefreshStatusInput, *reconciliation.StatusView](
		func(context.Context, reconciliation.RefreshStatusInput) (*reconciliation.StatusView, error) {
			return nil, &payment.ProtocolError{Op: "GET ip", Status: 403, Message: "forbidden", Details: "grant expired"}
		})
	rec := f.serve(t, Options{}, http.MethodGet, "/pos/order-status?orderId=o-1", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "forbidden", body["error"])
	assert.Equal(t, "grant expired", body["details"])
}

func TestUnknownRoute(t *testing.T) {
	f := newAPI(t)
	rec := f.serve(t, Options{}, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "route not found", decode(t, rec)["error"])
}

func TestCORS(t *testing.T) {
	f := newAPI(t)
	opts := Options{CORSOrigins: []string{"http://localhost:5174"}}

	rec := f.serve(t, opts, http.MethodOptions, "/pos/create-order", "",
		"Origin", "http://localhost:5174", "Access-Control-Request-Method", "POST")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5174", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = f.serve(t, opts, http.MethodGet, "/health", "", "Origin", "https://evil.example")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.serve(t, opts, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsAndAccessLog(t *testing.T) {
	f := newAPI(t)
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics")) })

	rec := f.serve(t, Options{Metrics: metrics}, http.MethodGet, "/metrics", "")
	assert.Equal(t, "# metrics", rec.Body.String())

	f.serve(t, Options{}, http.MethodGet, "/pos/order-status?orderId=nope", "", headerRequestID, "req-42")
	assert.Equal(t, 1.0, f.rec.Value(observability.MHTTPRequests,
		"method=GET", "route=GET /pos/order-status", "status=404"))

	entries := f.rec.Logs.FilterMessage("http_access").All()
	require.NotEmpty(t, entries)
	last := entries[len(entries)-1].ContextMap()
	assert.Equal(t, "req-42", last["request_id"])
	assert.EqualValues(t, 404, last["status"])
}
