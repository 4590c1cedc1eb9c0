package observability

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/flight-tracker/internal/opensky"
	"github.com/yegors/flight-tracker/internal/stats"
)

func TestObserveSuccessSetsGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewPollerCollector(reg)
	require.NoError(t, err)

	result := opensky.FetchResult{Timestamp: 1700000000, Dropped: 2}
	summary := stats.SummaryMetrics{Total: 5, OnGround: 1, InAir: 4, AvgAltitude: 1234.5}
	c.ObserveSuccess(result, summary, 150*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.Cycles.WithLabelValues("success")))
	assert.Equal(t, 5.0, testutil.ToFloat64(c.Aircraft.WithLabelValues("total")))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.Aircraft.WithLabelValues("in_air")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Aircraft.WithLabelValues("on_ground")))
	assert.Equal(t, 1234.5, testutil.ToFloat64(c.AvgAltitude))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.DroppedVectors))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(c.PayloadTime))
}

func TestObserveFailureLabelsKind(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewPollerCollector(reg)
	require.NoError(t, err)

	c.ObserveFailure(&opensky.UpstreamStatusError{StatusCode: 503}, time.Second)
	c.ObserveFailure(&opensky.TransportError{URL: "http://x", Err: fmt.Errorf("connection refused")}, time.Second)
	c.ObserveFailure(fmt.Errorf("wrapped: %w", &opensky.MalformedPayloadError{Reason: "missing time field"}), time.Second)

	assert.Equal(t, 3.0, testutil.ToFloat64(c.Cycles.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.FetchErrors.WithLabelValues("status")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.FetchErrors.WithLabelValues("transport")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.FetchErrors.WithLabelValues("malformed")))
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *PollerCollector
	assert.NotPanics(t, func() {
		c.ObserveSuccess(opensky.FetchResult{}, stats.SummaryMetrics{}, 0)
		c.ObserveFailure(fmt.Errorf("boom"), 0)
	})
}

func TestDuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPollerCollector(reg)
	require.NoError(t, err)
	_, err = NewPollerCollector(reg)
	assert.Error(t, err)
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewPollerCollector(reg)
	require.NoError(t, err)
	c.ObserveSuccess(opensky.FetchResult{Timestamp: 1}, stats.SummaryMetrics{Total: 3, InAir: 3}, time.Millisecond)

	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body := rr.Body.String()
	assert.True(t, strings.Contains(body, `flight_tracker_aircraft{state="total"} 3`), body)
	assert.Contains(t, body, "flight_tracker_poll_cycles_total")
}
