package checkout

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/payment"
)

// NormalizePointer turns a payment pointer or wallet address into its https
// URL form: "$ilp.example/alice" and "http://ilp.example/alice/" both become
// "https://ilp.example/alice".
func NormalizePointer(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "$") {
		s = "https://" + s[1:]
	}

	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %q", payment.ErrInvalidPointer, raw)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		u.Scheme = "https"
	default:
		return "", fmt.Errorf("%w: %q", payment.ErrInvalidPointer, raw)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = strings.TrimRight(u.RawPath, "/")
	return u.String(), nil
}

// withQuery appends key=value to rawURL, keeping any query it already has.
func withQuery(rawURL, key, value string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
