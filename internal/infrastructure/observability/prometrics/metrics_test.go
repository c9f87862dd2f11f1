package prometrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/Zhima-Mochi/openpayments-pos/app/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterIsRegisteredOnce(t *testing.T) {
	r := New("pos").(*registry)

	c1 := r.Counter("usecase_requests_total", "help", "use_case", "outcome")
	c2 := r.Counter("usecase_requests_total", "help", "use_case", "outcome")

	c1.Add(1, observability.L("use_case", "order.create"), observability.L("outcome", "success"))
	c2.Bind(observability.L("use_case", "order.create"), observability.L("outcome", "success")).Add(2)

	v, ok := r.counters.Load("usecase_requests_total")
	require.True(t, ok)
	cv := v.(*prometheus.CounterVec)
	assert.Equal(t, 3.0, testutil.ToFloat64(cv.WithLabelValues("order.create", "success")))
}

func TestHandlerExposesInstruments(t *testing.T) {
	r := New("pos")
	h := r.Histogram("external_request_duration_seconds", "help", prometheus.DefBuckets, "peer", "endpoint")
	h.Observe(0.2, observability.L("peer", "wallet"), observability.L("endpoint", "wallet_address.get"))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `pos_external_request_duration_seconds_count{endpoint="wallet_address.get",peer="wallet"} 1`)
}
