package httppresentation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	apporder "github.com/Zhima-Mochi/openpayments-pos/app/internal/application/order"
	"github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/money"
	domorder "github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/order"
)

// flexString accepts a JSON string or number and keeps the literal text.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*s = ""
		return nil
	case len(b) > 0 && b[0] == '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(strings.TrimSpace(v))
		return nil
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*s = flexString(n.String())
	return nil
}

type itemRequest struct {
	ID        flexString `json:"id"`
	Name      string     `json:"name"`
	UnitPrice flexString `json:"unitPrice"`
	Qty       int        `json:"qty"`
}

type createOrderRequest struct {
	Items      []itemRequest `json:"items"`
	TaxPercent flexString    `json:"taxPercent"`
	// TaxRate is the fraction form sent by older clients.
	TaxRate   flexString `json:"taxRate"`
	FinishURL string     `json:"finishUrl"`
}

func (req createOrderRequest) input() (apporder.CreateOrderInput, error) {
	in := apporder.CreateOrderInput{
		TaxPercent: string(req.TaxPercent),
		FinishURL:  strings.TrimSpace(req.FinishURL),
	}
	if in.TaxPercent == "" && req.TaxRate != "" {
		pct, err := money.FromFraction(string(req.TaxRate))
		if err != nil {
			return in, err
		}
		in.TaxPercent = pct
	}
	for _, it := range req.Items {
		in.Lines = append(in.Lines, domorder.Line{
			ProductID: string(it.ID),
			Name:      it.Name,
			UnitPrice: string(it.UnitPrice),
			Quantity:  it.Qty,
		})
	}
	return in, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
