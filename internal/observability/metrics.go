package observability

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yegors/flight-tracker/internal/opensky"
	"github.com/yegors/flight-tracker/internal/stats"
)

// PollerCollector bundles the Prometheus metrics describing poll cycles
type PollerCollector struct {
	gatherer prometheus.Gatherer

	Cycles         *prometheus.CounterVec
	FetchErrors    *prometheus.CounterVec
	CycleDurations prometheus.Histogram
	DroppedVectors prometheus.Counter
	Aircraft       *prometheus.GaugeVec
	AvgAltitude    prometheus.Gauge
	PayloadTime    prometheus.Gauge
}

// NewPollerCollector registers the poller metrics against reg, defaulting to
// the global registry when nil.
func NewPollerCollector(reg prometheus.Registerer) (*PollerCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &PollerCollector{
		gatherer: gatherer,
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flight_tracker_poll_cycles_total",
			Help: "Poll cycles by result (success or failure).",
		}, []string{"result"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flight_tracker_fetch_errors_total",
			Help: "Failed fetches by error kind.",
		}, []string{"kind"}),
		CycleDurations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "flight_tracker_cycle_duration_seconds",
			Help:    "Duration of a fetch-normalize-summarize cycle.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		DroppedVectors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flight_tracker_dropped_state_vectors_total",
			Help: "State vectors dropped for having an unexpected field count.",
		}),
		Aircraft: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "flight_tracker_aircraft",
			Help: "Aircraft in the last successful cycle by state (total, in_air, on_ground).",
		}, []string{"state"}),
		AvgAltitude: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flight_tracker_avg_altitude_meters",
			Help: "Mean geometric altitude in the last successful cycle.",
		}),
		PayloadTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flight_tracker_payload_timestamp_seconds",
			Help: "Upstream timestamp of the last successful cycle.",
		}),
	}

	collectors := map[string]prometheus.Collector{
		"flight_tracker_poll_cycles_total":           c.Cycles,
		"flight_tracker_fetch_errors_total":          c.FetchErrors,
		"flight_tracker_cycle_duration_seconds":      c.CycleDurations,
		"flight_tracker_dropped_state_vectors_total": c.DroppedVectors,
		"flight_tracker_aircraft":                    c.Aircraft,
		"flight_tracker_avg_altitude_meters":         c.AvgAltitude,
		"flight_tracker_payload_timestamp_seconds":   c.PayloadTime,
	}
	for name, col := range collectors {
		if err := reg.Register(col); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				return nil, fmt.Errorf("collector %s already registered", name)
			}
			return nil, err
		}
	}

	return c, nil
}

// ObserveSuccess records a successful cycle
func (c *PollerCollector) ObserveSuccess(result opensky.FetchResult, summary stats.SummaryMetrics, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.Cycles.WithLabelValues("success").Inc()
	c.CycleDurations.Observe(elapsed.Seconds())
	c.DroppedVectors.Add(float64(result.Dropped))
	c.Aircraft.WithLabelValues("total").Set(float64(summary.Total))
	c.Aircraft.WithLabelValues("in_air").Set(float64(summary.InAir))
	c.Aircraft.WithLabelValues("on_ground").Set(float64(summary.OnGround))
	c.AvgAltitude.Set(summary.AvgAltitude)
	c.PayloadTime.Set(float64(result.Timestamp))
}

// ObserveFailure records a failed cycle
func (c *PollerCollector) ObserveFailure(err error, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.Cycles.WithLabelValues("failure").Inc()
	c.CycleDurations.Observe(elapsed.Seconds())
	c.FetchErrors.WithLabelValues(ErrorKind(err)).Inc()
}

// Handler exposes a ready-to-use /metrics handler
func (c *PollerCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ErrorKind classifies a fetch failure for metric labels
func ErrorKind(err error) string {
	var (
		transport *opensky.TransportError
		status    *opensky.UpstreamStatusError
		malformed *opensky.MalformedPayloadError
	)
	switch {
	case errors.As(err, &transport):
		return "transport"
	case errors.As(err, &status):
		return "status"
	case errors.As(err, &malformed):
		return "malformed"
	default:
		return "other"
	}
}
