package payment

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrInvalidPointer     = errors.New("payment: invalid wallet address")
	ErrNoRedirectReceived = errors.New("payment: grant did not return an interaction redirect")
	ErrMissingToken       = errors.New("payment: grant did not return an access token")
)

// ProtocolError is a failure reported by a wallet or authorization server.
type ProtocolError struct {
	Op      string
	Status  int
	Message string
	Details any
}

func (e *ProtocolError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %d %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// HTTPStatus returns the status to surface to callers, defaulting to 500.
func (e *ProtocolError) HTTPStatus() int {
	if e.Status >= 400 && e.Status <= 599 {
		return e.Status
	}
	return http.StatusInternalServerError
}

// AsProtocolError unwraps err to a *ProtocolError.
func AsProtocolError(err error) (*ProtocolError, bool) {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
