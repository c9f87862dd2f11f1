package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/openpayments-pos/app/internal/observability"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/observability/logctx"
)

// ErrTimeout marks an external call that exceeded its own deadline.
var ErrTimeout = errors.New("external call timed out")

// External bounds calls to one peer with a timeout and records
// external_requests_total / external_request_duration_seconds.
type External struct {
	peer    string
	timeout time.Duration
	log     observability.Logger

	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
}

func NewExternal(peer string, timeout time.Duration, tel observability.Observability) *External {
	tel = observability.OrNop(tel)
	return &External{
		peer:         peer,
		timeout:      timeout,
		log:          tel.Logger().With(observability.F("peer", peer)),
		extCounter:   tel.Metrics().Counter(observability.MExternalRequests),
		extHistogram: tel.Metrics().Histogram(observability.MExternalRequestDuration),
	}
}

// Peer names the remote side.
func (e *External) Peer() string { return e.peer }

// Call runs fn under the peer timeout. Errors are prefixed with endpoint; a
// deadline hit by this call (not by the caller's context) wraps ErrTimeout.
func Call[T any](ctx context.Context, e *External, endpoint string, fn func(context.Context) (T, error)) (T, error) {
	callCtx := ctx
	cancel := context.CancelFunc(func() {})
	if e.timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
	}
	defer cancel()

	start := time.Now()
	res, err := fn(callCtx)
	outcome := observability.OutcomeSuccess

	if err != nil {
		switch {
		case ctx.Err() != nil:
			outcome = observability.OutcomeCanceled
			err = fmt.Errorf("%s: %w", endpoint, err)
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded):
			outcome = observability.OutcomeTimeout
			err = fmt.Errorf("%s: %w after %s", endpoint, ErrTimeout, e.timeout)
		default:
			outcome = observability.OutcomeError
			err = fmt.Errorf("%s: %w", endpoint, err)
		}
		logctx.FromOr(ctx, e.log).Warn("external_call_failed",
			observability.F("peer", e.peer),
			observability.F("endpoint", endpoint),
			observability.F("outcome", outcome),
			observability.F("error", err.Error()),
		)
	}

	e.extCounter.Add(1,
		observability.L("peer", e.peer),
		observability.L("endpoint", endpoint),
		observability.L("outcome", outcome),
	)
	e.extHistogram.Observe(time.Since(start).Seconds(),
		observability.L("peer", e.peer),
		observability.L("endpoint", endpoint),
	)
	return res, err
}

// Do is Call for operations without a result.
func (e *External) Do(ctx context.Context, endpoint string, fn func(context.Context) error) error {
	_, err := Call(ctx, e, endpoint, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
