package inventory

import (
	"fmt"
	"strings"
)

// LineStatus is the outcome of reconciling one cart line.
type LineStatus string

const (
	LineSucceeded LineStatus = "succeeded"
	LineFailed    LineStatus = "failed"
	LineSkipped   LineStatus = "skipped"
)

// Skip and failure reasons recorded on LineResult.Reason.
const (
	ReasonMissingProductID  = "missing_product_id"
	ReasonInvalidQuantity   = "invalid_quantity"
	ReasonNotFound          = "not_found"
	ReasonInsufficientStock = "insufficient_stock"
	ReasonGatewayError      = "gateway_error"
)

// LineResult records what happened to one line.
type LineResult struct {
	ProductID   string     `json:"productId,omitempty"`
	Name        string     `json:"name,omitempty"`
	Quantity    int        `json:"quantity"`
	Status      LineStatus `json:"status"`
	Reason      string     `json:"reason,omitempty"`
	StockBefore *int       `json:"stockBefore,omitempty"`
	StockAfter  *int       `json:"stockAfter,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Result summarises a reconciliation run.
type Result struct {
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Skipped   int          `json:"skipped"`
	Lines     []LineResult `json:"lines"`
}

// Add appends a line and updates the counters.
func (r *Result) Add(l LineResult) {
	switch l.Status {
	case LineSucceeded:
		r.Succeeded++
	case LineFailed:
		r.Failed++
	case LineSkipped:
		r.Skipped++
	}
	r.Lines = append(r.Lines, l)
}

// Reconciled reports whether the run counts as reconciling the order.
func (r *Result) Reconciled() bool {
	return r != nil && r.Succeeded > 0
}

// FailureSummary describes failed lines in one human-readable sentence, or "" when none failed.
func (r *Result) FailureSummary() string {
	if r == nil {
		return ""
	}
	var parts []string
	for _, l := range r.Lines {
		if l.Status != LineFailed {
			continue
		}
		id := l.ProductID
		if id == "" {
			id = l.Name
		}
		parts = append(parts, fmt.Sprintf("%s: %s", id, l.Reason))
	}
	if len(parts) == 0 {
		if r.Succeeded == 0 {
			return fmt.Sprintf("no lines reconciled (%d skipped)", r.Skipped)
		}
		return ""
	}
	return fmt.Sprintf("%d of %d lines failed (%s)", r.Failed, len(r.Lines), strings.Join(parts, "; "))
}

// Clone returns a deep copy.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	out := &Result{Succeeded: r.Succeeded, Failed: r.Failed, Skipped: r.Skipped}
	if r.Lines != nil {
		out.Lines = make([]LineResult, len(r.Lines))
		for i, l := range r.Lines {
			out.Lines[i] = l
			if l.StockBefore != nil {
				v := *l.StockBefore
				out.Lines[i].StockBefore = &v
			}
			if l.StockAfter != nil {
				v := *l.StockAfter
				out.Lines[i].StockAfter = &v
			}
		}
	}
	return out
}
