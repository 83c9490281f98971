package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/errorgen/pkg/fault"
)

func TestRecordRequest(t *testing.T) {
	t.Parallel()
	m := New()

	m.RecordRequest(fault.ErrorTypeTimeout, fault.KindSimulatedFailure, 10*time.Millisecond)
	m.RecordRequest(fault.ErrorTypeTimeout, fault.KindSimulatedFailure, 20*time.Millisecond)
	m.RecordRequest(fault.ErrorTypeInternal, fault.KindSuccess, time.Millisecond)

	assert.InDelta(t, 2, testutil.ToFloat64(m.requests.WithLabelValues("TIMEOUT_ERROR", "failure")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.requests.WithLabelValues("INTERNAL_ERROR", "success")), 0)
	assert.Equal(t, 2, testutil.CollectAndCount(m.requests))
	assert.Equal(t, 2, testutil.CollectAndCount(m.duration))
}

func TestRecordInjectedLatency(t *testing.T) {
	t.Parallel()
	m := New()

	m.RecordInjectedLatency(250 * time.Millisecond)

	expected := `
# HELP errorgen_injected_latency_seconds Latency injected into fault injection requests in seconds.
# TYPE errorgen_injected_latency_seconds histogram
errorgen_injected_latency_seconds_bucket{le="0"} 0
errorgen_injected_latency_seconds_bucket{le="0.01"} 0
errorgen_injected_latency_seconds_bucket{le="0.05"} 0
errorgen_injected_latency_seconds_bucket{le="0.1"} 0
errorgen_injected_latency_seconds_bucket{le="0.25"} 1
errorgen_injected_latency_seconds_bucket{le="0.5"} 1
errorgen_injected_latency_seconds_bucket{le="1"} 1
errorgen_injected_latency_seconds_bucket{le="2"} 1
errorgen_injected_latency_seconds_bucket{le="5"} 1
errorgen_injected_latency_seconds_bucket{le="10"} 1
errorgen_injected_latency_seconds_bucket{le="30"} 1
errorgen_injected_latency_seconds_bucket{le="+Inf"} 1
errorgen_injected_latency_seconds_sum 0.25
errorgen_injected_latency_seconds_count 1
`
	require.NoError(t, testutil.CollectAndCompare(m.injectedLatency, strings.NewReader(expected)))
}

func TestInstrumentHandler(t *testing.T) {
	t.Parallel()
	m := New()

	var during float64
	h := m.InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		during = testutil.ToFloat64(m.inFlight)
		w.WriteHeader(http.StatusNoContent)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.InDelta(t, 1, during, 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.inFlight), 0)
}

func TestHandler(t *testing.T) {
	t.Parallel()
	m := New()
	m.RecordRequest(fault.ErrorTypeDependency, fault.KindSimulatedFailure, time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `errorgen_requests_total{error_type="DEPENDENCY_ERROR",outcome="failure"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestNew_IndependentRegistries(t *testing.T) {
	t.Parallel()
	a, b := New(), New()
	a.RecordRequest(fault.ErrorTypeInternal, fault.KindSuccess, 0)

	assert.NotSame(t, a.Registry(), b.Registry())
	assert.Equal(t, 0, testutil.CollectAndCount(b.requests))
}
