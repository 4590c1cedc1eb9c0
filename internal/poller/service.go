package poller

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yegors/flight-tracker/internal/observability"
	"github.com/yegors/flight-tracker/internal/opensky"
	"github.com/yegors/flight-tracker/internal/stats"
	"github.com/yegors/flight-tracker/pkg/logger"
)

// DefaultInterval is the pause between cycles when none is configured
const DefaultInterval = 30 * time.Second

const tracerName = "github.com/yegors/flight-tracker/internal/poller"

// Fetcher retrieves one timestamped record set for a region
type Fetcher interface {
	Fetch(ctx context.Context, bbox *opensky.BoundingBox) opensky.FetchResult
}

// Sink consumes the outcome of each published cycle
type Sink interface {
	OnSnapshot(ctx context.Context, snap Snapshot) error
	OnFailure(ctx context.Context, at time.Time, err error)
}

// Snapshot is the immutable product of one successful cycle
type Snapshot struct {
	Timestamp int64                 `json:"timestamp"`
	FetchedAt time.Time             `json:"fetched_at"`
	BBox      *opensky.BoundingBox  `json:"bbox,omitempty"`
	Records   []opensky.StateVector `json:"records"`
	Summary   stats.SummaryMetrics  `json:"summary"`
	Dropped   int                   `json:"dropped"`
}

// Options configures a Service
type Options struct {
	Interval    time.Duration
	BoundingBox *opensky.BoundingBox // nil polls the whole world
	Metrics     *observability.PollerCollector
}

// Service drives fetch, normalize and summarize on a fixed interval
type Service struct {
	fetcher  Fetcher
	bbox     *opensky.BoundingBox
	interval time.Duration
	sinks    []Sink
	metrics  *observability.PollerCollector
	tracer   trace.Tracer
	logger   *logger.Logger
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates a poll loop over fetcher
func NewService(fetcher Fetcher, opts Options, logger *logger.Logger, sinks ...Sink) *Service {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	var bbox *opensky.BoundingBox
	if opts.BoundingBox != nil {
		b := *opts.BoundingBox
		bbox = &b
	}

	return &Service{
		fetcher:  fetcher,
		bbox:     bbox,
		interval: interval,
		sinks:    sinks,
		metrics:  opts.Metrics,
		tracer:   otel.Tracer(tracerName),
		logger:   logger.Named("poller"),
		now:      time.Now,
	}
}

// Start runs the loop in the background until Stop is called or ctx ends
func (s *Service) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = s.Run(s.ctx)
	}()
}

// Stop cancels the loop and waits for the in-flight cycle to finish
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Run polls until ctx is cancelled. A failed cycle is logged and the next
// attempt waits the full interval. The interval is measured from the end of
// one cycle to the start of the next.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("Starting poll loop",
		logger.Duration("interval", s.interval),
		logger.Bool("full_world", s.bbox == nil),
	)

	for ctx.Err() == nil {
		_, _ = s.RunCycle(ctx)

		timer := time.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}

	s.logger.Info("Poll loop stopped")
	return nil
}

// RunCycle performs one cycle over the configured region and publishes the
// outcome to every sink.
func (s *Service) RunCycle(ctx context.Context) (Snapshot, error) {
	snap, err := s.collect(ctx, s.bbox, true)
	if err != nil {
		// Cancelled mid-request; nothing to report during shutdown
		if ctx.Err() != nil {
			return Snapshot{}, err
		}
		for _, sink := range s.sinks {
			sink.OnFailure(ctx, s.now(), err)
		}
		return Snapshot{}, err
	}

	for _, sink := range s.sinks {
		if err := sink.OnSnapshot(ctx, snap); err != nil {
			s.logger.Error("Sink failed to handle snapshot",
				logger.Error(err),
				logger.Int64("timestamp", snap.Timestamp),
			)
		}
	}
	return snap, nil
}

// Collect runs fetch, normalize and summarize for bbox without publishing.
// It is also used for one-off refreshes of an arbitrary region and leaves the
// poll cycle metrics untouched.
func (s *Service) Collect(ctx context.Context, bbox *opensky.BoundingBox) (Snapshot, error) {
	return s.collect(ctx, bbox, false)
}

// collect performs one fetch. Only polled cycles feed the cycle metrics and
// the cycle log lines.
func (s *Service) collect(ctx context.Context, bbox *opensky.BoundingBox, polled bool) (Snapshot, error) {
	spanName := "poller.collect"
	if polled {
		spanName = "poller.cycle"
	}
	ctx, span := s.tracer.Start(ctx, spanName)
	defer span.End()

	start := s.now()
	result := s.fetcher.Fetch(ctx, bbox)
	elapsed := s.now().Sub(start)

	if !result.OK() {
		span.RecordError(result.Err)
		span.SetStatus(codes.Error, result.Err.Error())
		if ctx.Err() != nil {
			return Snapshot{}, result.Err
		}
		if !polled {
			s.logger.Warn("Region collect failed",
				logger.Error(result.Err),
				logger.String("kind", observability.ErrorKind(result.Err)),
			)
			return Snapshot{}, result.Err
		}
		s.metrics.ObserveFailure(result.Err, elapsed)
		s.logger.Error("Poll cycle failed",
			logger.Error(result.Err),
			logger.String("kind", observability.ErrorKind(result.Err)),
			logger.Duration("elapsed", elapsed),
		)
		return Snapshot{}, result.Err
	}

	summary := stats.Summarize(result.Records)

	span.SetAttributes(
		attribute.Int64("opensky.time", result.Timestamp),
		attribute.Int("aircraft.total", summary.Total),
		attribute.Int("aircraft.on_ground", summary.OnGround),
		attribute.Int("aircraft.dropped", result.Dropped),
	)

	if polled {
		s.metrics.ObserveSuccess(result, summary, elapsed)
		s.logger.Info("Poll cycle complete",
			logger.String("time", stats.FormatTimestamp(result.Timestamp)),
			logger.Int("total", summary.Total),
			logger.Int("in_air", summary.InAir),
			logger.Int("on_ground", summary.OnGround),
			logger.String("avg_altitude_m", formatAltitude(summary.AvgAltitude)),
			logger.Int("dropped", result.Dropped),
			logger.Duration("elapsed", elapsed),
		)
	} else {
		s.logger.Debug("Region collected",
			logger.Int("total", summary.Total),
			logger.Duration("elapsed", elapsed),
		)
	}

	return Snapshot{
		Timestamp: result.Timestamp,
		FetchedAt: start,
		BBox:      bbox,
		Records:   result.Records,
		Summary:   summary,
		Dropped:   result.Dropped,
	}, nil
}

// formatAltitude renders metres with one decimal place
func formatAltitude(m float64) string {
	return strconv.FormatFloat(m, 'f', 1, 64)
}
