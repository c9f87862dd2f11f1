package checkout

import (
	"testing"

	"github.com/Zhima-Mochi/openpayments-pos/app/internal/domain/payment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePointer(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"$ilp.example/alice", "https://ilp.example/alice"},
		{"  $ilp.example/alice  ", "https://ilp.example/alice"},
		{"http://ilp.example/alice", "https://ilp.example/alice"},
		{"HTTP://ilp.example/alice", "https://ilp.example/alice"},
		{"Https://ilp.example/alice/", "https://ilp.example/alice"},
		{"https://ilp.example/alice///", "https://ilp.example/alice"},
		{"https://ilp.interledger-test.dev/interpyme", "https://ilp.interledger-test.dev/interpyme"},
	}
	for _, tt := range tests {
		got, err := NormalizePointer(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestNormalizePointerRejects(t *testing.T) {
	for _, in := range []string{"", "   ", "alice", "ftp://ilp.example/alice", "FTP://ilp.example/alice", "https://", "$", "https:///alice"} {
		_, err := NormalizePointer(in)
		assert.ErrorIs(t, err, payment.ErrInvalidPointer, "input %q", in)
	}
}

func TestWithQuery(t *testing.T) {
	got, err := withQuery("http://localhost:5174/complete", "checkoutId", "c 1")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5174/complete?checkoutId=c+1", got)

	got, err = withQuery("https://pos.example/done?lang=es", "checkoutId", "abc")
	require.NoError(t, err)
	assert.Equal(t, "https://pos.example/done?checkoutId=abc&lang=es", got)
}
