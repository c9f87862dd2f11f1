package application

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/payment"
)

// RetryPolicy retries an operation with linear backoff: the wait after attempt
// n is n * Backoff.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
	// Retryable decides whether err is worth another attempt. Nil retries
	// everything except client errors reported by the peer.
	Retryable func(error) bool
}

// DefaultRetryPolicy makes three attempts, waiting 500ms then 1s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: 500 * time.Millisecond}
}

// Do calls fn until it succeeds, the attempts run out, or ctx is done. The
// last error is returned.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = RetryableByDefault
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx, attempt); err == nil {
			return nil
		}
		if attempt == attempts || !retryable(err) || ctx.Err() != nil {
			return err
		}

		t := time.NewTimer(p.Backoff * time.Duration(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
	}
	return err
}

// RetryableByDefault treats 4xx protocol answers (other than 408 and 429) and
// caller cancellation as permanent.
func RetryableByDefault(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if pe, ok := payment.AsProtocolError(err); ok && pe.Status >= 400 && pe.Status < 500 {
		return pe.Status == http.StatusRequestTimeout || pe.Status == http.StatusTooManyRequests
	}
	return true
}
