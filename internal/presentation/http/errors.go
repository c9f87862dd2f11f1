package httppresentation

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Zhima-Mochi/openpayments-pos/app/internal/application"
	domcheckout "github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/checkout"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/money"
	domorder "github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/order"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/payment"
)

type errorBody struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

type interactionRequiredBody struct {
	Error            string `json:"error"`
	InteractRedirect string `json:"interactRedirect"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeDomainError(w http.ResponseWriter, err error) {
	if pe, ok := payment.AsProtocolError(err); ok {
		writeJSON(w, pe.HTTPStatus(), errorBody{Error: pe.Message, Details: pe.Details})
		return
	}
	switch {
	case errors.Is(err, domorder.ErrEmptyCart),
		errors.Is(err, domorder.ErrInvalidLine),
		errors.Is(err, money.ErrInvalidAmount),
		errors.Is(err, money.ErrNegativeOrZeroTotal),
		errors.Is(err, payment.ErrInvalidPointer),
		errors.Is(err, domcheckout.ErrInvalidReceiver),
		errors.Is(err, domcheckout.ErrMissingInteractRef):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, domorder.ErrNotFound),
		errors.Is(err, domcheckout.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domcheckout.ErrContinuationConsumed),
		errors.Is(err, domcheckout.ErrFinishAttemptsExhausted):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, application.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
