// Package money implements exact arithmetic on scaled integer amounts as used by
// Open Payments: a value of "1234" at scale 2 is 12.34 units of the asset.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount       = errors.New("money: invalid amount")
	ErrNegativeOrZeroTotal = errors.New("money: total must be greater than zero")
	ErrAssetMismatch       = errors.New("money: asset code or scale mismatch")
)

// Amount is an Open Payments amount. Value holds only digits, no sign.
type Amount struct {
	Value      string `json:"value"`
	AssetCode  string `json:"assetCode"`
	AssetScale int    `json:"assetScale"`
}

// Compatible reports whether a and b can be combined.
func (a Amount) Compatible(b Amount) bool {
	return a.AssetCode == b.AssetCode && a.AssetScale == b.AssetScale
}

// Zero returns a zero amount in the given asset.
func Zero(assetCode string, assetScale int) Amount {
	return Amount{Value: "0", AssetCode: assetCode, AssetScale: assetScale}
}

// String renders the amount as "12.34 MXN".
func (a Amount) String() string {
	return Format(a.Value, a.AssetScale) + " " + a.AssetCode
}

// ToScaled converts a decimal string to its scaled integer representation.
// Fraction digits beyond scale are truncated.
func ToScaled(value string, scale int) (string, error) {
	if scale < 0 {
		return "", fmt.Errorf("%w: negative scale %d", ErrInvalidAmount, scale)
	}
	s := strings.TrimSpace(value)
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	intPart, fracPart, hasDot := strings.Cut(s, ".")
	if hasDot && strings.Contains(fracPart, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	if hasDot && intPart == "" && fracPart == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	if !digitsOnly(intPart) || !digitsOnly(fracPart) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}

	if len(fracPart) > scale {
		fracPart = fracPart[:scale]
	} else {
		fracPart += strings.Repeat("0", scale-len(fracPart))
	}
	return canonical(intPart + fracPart), nil
}

// Add returns a + b.
func Add(a, b string) (string, error) {
	x, err := parseScaled(a)
	if err != nil {
		return "", err
	}
	y, err := parseScaled(b)
	if err != nil {
		return "", err
	}
	return x.Add(y).String(), nil
}

// Sum adds all values; the empty sum is "0".
func Sum(values ...string) (string, error) {
	total := "0"
	for _, v := range values {
		var err error
		if total, err = Add(total, v); err != nil {
			return "", err
		}
	}
	return total, nil
}

// MultiplyByQuantity scales a decimal unit price and multiplies it by a positive quantity.
func MultiplyByQuantity(unitPrice string, quantity, scale int) (string, error) {
	if quantity <= 0 {
		return "", fmt.Errorf("%w: quantity %d", ErrInvalidAmount, quantity)
	}
	scaled, err := ToScaled(unitPrice, scale)
	if err != nil {
		return "", err
	}
	d, _ := parseScaled(scaled)
	return d.Mul(decimal.NewFromInt(int64(quantity))).String(), nil
}

// PercentOf returns floor(amount * percent / 100) for a scaled amount and a
// non-negative decimal percentage such as "16" or "8.5".
func PercentOf(amount, percent string) (string, error) {
	base, err := parseScaled(amount)
	if err != nil {
		return "", err
	}
	p := strings.TrimSpace(percent)
	if p == "" {
		return "0", nil
	}
	intPart, fracPart, hasDot := strings.Cut(p, ".")
	if (hasDot && strings.Contains(fracPart, ".")) || (intPart == "" && fracPart == "") ||
		!digitsOnly(intPart) || !digitsOnly(fracPart) {
		return "", fmt.Errorf("%w: percent %q", ErrInvalidAmount, percent)
	}
	digits, _ := parseScaled(canonical(intPart + fracPart))
	divisor := decimal.New(100, int32(len(fracPart)))

	q, _ := base.Mul(digits).QuoRem(divisor, 0)
	return q.String(), nil
}

// IsPositive reports whether a scaled value is a valid amount greater than zero.
func IsPositive(value string) bool {
	d, err := parseScaled(value)
	return err == nil && d.IsPositive()
}

// Format renders a scaled value with a decimal point: ("1234", 2) -> "12.34".
func Format(value string, scale int) string {
	v := canonical(value)
	if scale <= 0 {
		return v
	}
	if len(v) <= scale {
		v = strings.Repeat("0", scale-len(v)+1) + v
	}
	return v[:len(v)-scale] + "." + v[len(v)-scale:]
}

// FromFraction converts a rate expressed as a fraction ("0.16") to a percentage ("16").
func FromFraction(rate string) (string, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(rate))
	if err != nil || d.IsNegative() {
		return "", fmt.Errorf("%w: rate %q", ErrInvalidAmount, rate)
	}
	return d.Shift(2).String(), nil
}

func parseScaled(v string) (decimal.Decimal, error) {
	if v == "" || !digitsOnly(v) {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrInvalidAmount, v)
	}
	return decimal.RequireFromString(v), nil
}

func digitsOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func canonical(digits string) string {
	trimmed := strings.TrimLeft(digits, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}
