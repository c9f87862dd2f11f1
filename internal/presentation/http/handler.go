// Package httppresentation serves the POS HTTP API.
package httppresentation

import (
	"net/http"
	"strings"

	"github.com/Zhima-Mochi/openpayments-pos/app/internal/application"
	appcheckout "github.com/Zhima-Mochi/openpayments-pos/app/internal/application/checkout"
	appmerchant "github.com/Zhima-Mochi/openpayments-pos/app/internal/application/merchant"
	apporder "github.com/Zhima-Mochi/openpayments-pos/app/internal/application/order"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/application/reconciliation"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
	maxBodyBytes         = 1 << 20
)

// UseCases are the operations the API exposes.
type UseCases struct {
	CreateOrder      application.UseCase[apporder.CreateOrderInput, *apporder.CreateOrderResult]
	RefreshStatus    application.UseCase[reconciliation.RefreshStatusInput, *reconciliation.StatusView]
	StartCheckout    application.UseCase[appcheckout.StartCheckoutInput, *appcheckout.StartCheckoutResult]
	FinishCheckout   application.UseCase[appcheckout.FinishCheckoutInput, *appcheckout.FinishCheckoutResult]
	DescribeMerchant application.UseCase[struct{}, appmerchant.Description]
}

type Options struct {
	// Metrics serves GET /metrics when set.
	Metrics     http.Handler
	CORSOrigins []string
}

type Handler struct {
	uc   UseCases
	opts Options
	log  observability.Logger

	requests observability.Counter
	duration observability.Histogram
}

func NewHandler(uc UseCases, opts Options, tel observability.Observability) *Handler {
	tel = observability.OrNop(tel)
	return &Handler{
		uc:       uc,
		opts:     opts,
		log:      tel.Logger().With(observability.F("component", componentHTTPHandler)),
		requests: tel.Metrics().Counter(observability.MHTTPRequests),
		duration: tel.Metrics().Histogram(observability.MHTTPRequestDuration),
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP, middleware.Recoverer, corsMiddleware(h.opts.CORSOrigins))

	h.handle(r, http.MethodGet, "/health", h.handleHealth)
	h.handle(r, http.MethodGet, "/config", h.handleConfig)
	h.handle(r, http.MethodPost, "/pos/create-order", h.handleCreateOrder)
	h.handle(r, http.MethodGet, "/pos/order-status", h.handleOrderStatus)
	h.handle(r, http.MethodPost, "/checkout/start", h.handleStartCheckout)
	h.handle(r, http.MethodPost, "/checkout/finish", h.handleFinishCheckout)
	if h.opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.opts.Metrics)
	}

	r.NotFound(h.wrap("not_found", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "route not found"})
	}))
	r.MethodNotAllowed(h.wrap("method_not_allowed", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method not allowed"})
	}))
	return r
}

func (h *Handler) handle(r chi.Router, method, pattern string, fn http.HandlerFunc) {
	r.Method(method, pattern, h.wrap(method+" "+pattern, fn))
}

// wrap applies Trace → request logger → access log → HTTP metrics → handler.
func (h *Handler) wrap(route string, fn http.HandlerFunc) http.HandlerFunc {
	chain := withTrace(
		ObservabilityMiddleware(h.log, func(r *http.Request) string {
			return strings.TrimSpace(r.Header.Get(headerRequestID))
		})(
			withAccessLog(h.log,
				withHTTPMetrics(h.requests, h.duration, fn),
			),
		),
	)
	return func(w http.ResponseWriter, r *http.Request) {
		chain.ServeHTTP(w, r.WithContext(contextWithRoute(r.Context(), route)))
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) handleConfig(w http.ResponseWriter, r *http.Request) {
	desc, err := h.uc.DescribeMerchant.Execute(r.Context(), struct{}{})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

type createOrderResponse struct {
	OrderID    string `json:"orderId"`
	PaymentURL string `json:"paymentUrl"`
	Total      string `json:"total"`
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	in, err := req.input()
	if err != nil {
		writeDomainError(w, err)
		return
	}

	res, err := h.uc.CreateOrder.Execute(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if res.InteractRedirect != "" {
		writeJSON(w, http.StatusForbidden, interactionRequiredBody{
			Error:            "merchant approval required",
			InteractRedirect: res.InteractRedirect,
		})
		return
	}
	writeJSON(w, http.StatusOK, createOrderResponse{
		OrderID:    res.Order.ID,
		PaymentURL: res.Order.IncomingPaymentURL,
		Total:      res.Order.Total.Value,
	})
}

type orderStatusResponse struct {
	Status *reconciliation.StatusView `json:"status"`
}

func (h *Handler) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := strings.TrimSpace(r.URL.Query().Get("orderId"))
	if orderID == "" {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "order not found"})
		return
	}
	view, err := h.uc.RefreshStatus.Execute(r.Context(), reconciliation.RefreshStatusInput{OrderID: orderID})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderStatusResponse{Status: view})
}

type startCheckoutRequest struct {
	CustomerWalletAddressURL string `json:"customerWalletAddressUrl"`
	ReceiverPaymentURL       string `json:"receiverPaymentUrl"`
	FinishURL                string `json:"finishUrl"`
}

type startCheckoutResponse struct {
	CheckoutID       string `json:"checkoutId"`
	InteractRedirect string `json:"interactRedirect"`
}

func (h *Handler) handleStartCheckout(w http.ResponseWriter, r *http.Request) {
	var req startCheckoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := h.uc.StartCheckout.Execute(r.Context(), appcheckout.StartCheckoutInput{
		PayerPointer:               req.CustomerWalletAddressURL,
		ReceiverIncomingPaymentURL: req.ReceiverPaymentURL,
		FinishURL:                  req.FinishURL,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, startCheckoutResponse{CheckoutID: res.CheckoutID, InteractRedirect: res.RedirectURL})
}

type finishCheckoutRequest struct {
	CheckoutID  string `json:"checkoutId"`
	InteractRef string `json:"interactRef"`
}

type finishCheckoutResponse struct {
	OK                bool   `json:"ok"`
	OutgoingPaymentID string `json:"outgoingPaymentId"`
}

func (h *Handler) handleFinishCheckout(w http.ResponseWriter, r *http.Request) {
	var req finishCheckoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.CheckoutID) == "" || strings.TrimSpace(req.InteractRef) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "checkoutId and interactRef are required"})
		return
	}
	res, err := h.uc.FinishCheckout.Execute(r.Context(), appcheckout.FinishCheckoutInput{
		CheckoutID:  req.CheckoutID,
		InteractRef: req.InteractRef,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, finishCheckoutResponse{OK: true, OutgoingPaymentID: res.OutgoingPaymentID})
}
