package render

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/yegors/flight-tracker/internal/opensky"
	"github.com/yegors/flight-tracker/internal/poller"
	"github.com/yegors/flight-tracker/internal/stats"
	"github.com/yegors/flight-tracker/pkg/logger"
)

// Marker colours
const (
	AirborneColor = "green"
	GroundColor   = "red"
)

// Marker is one plotted aircraft
type Marker struct {
	Latitude  float64
	Longitude float64
	Label     string
	OnGround  bool
}

// Markers returns one marker per record with a non-zero latitude and longitude
func Markers(records []opensky.StateVector) []Marker {
	markers := make([]Marker, 0, len(records))
	for _, r := range records {
		if !r.HasPosition() {
			continue
		}
		markers = append(markers, Marker{
			Latitude:  r.Latitude,
			Longitude: r.Longitude,
			Label:     fmt.Sprintf("%s / %s / Alt: %dm", r.Callsign, r.Country(), int(r.GeoAltitude)),
			OnGround:  r.IsOnGround(),
		})
	}
	return markers
}

// RenderMap writes a standalone HTML scatter map of snap to w
func RenderMap(w io.Writer, snap poller.Snapshot) error {
	var airborne, ground []opts.ScatterData
	for _, m := range Markers(snap.Records) {
		pt := opts.ScatterData{Name: m.Label, Value: []interface{}{m.Longitude, m.Latitude}}
		if m.OnGround {
			ground = append(ground, pt)
		} else {
			airborne = append(airborne, pt)
		}
	}

	xMin, xMax, yMin, yMax := mapExtent(snap)

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Live Flight Tracker", Width: "1000px", Height: "800px"}),
		charts.WithTitleOpts(opts.Title{
			Title: "Aircraft Positions",
			Subtitle: fmt.Sprintf("%s  total=%d in_air=%d on_ground=%d",
				stats.FormatTimestamp(snap.Timestamp), snap.Summary.Total, snap.Summary.InAir, snap.Summary.OnGround),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Longitude", Min: xMin, Max: xMax, NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Latitude", Min: yMin, Max: yMax, NameLocation: "middle", NameGap: 35}),
	)
	scatter.AddSeries("airborne", airborne,
		charts.WithItemStyleOpts(opts.ItemStyle{Color: AirborneColor}),
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}),
	)
	scatter.AddSeries("on ground", ground,
		charts.WithItemStyleOpts(opts.ItemStyle{Color: GroundColor}),
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}),
	)

	if err := scatter.Render(w); err != nil {
		return fmt.Errorf("failed to render map: %w", err)
	}
	return nil
}

// mapExtent uses the bounding box when known and the marker spread otherwise
func mapExtent(snap poller.Snapshot) (xMin, xMax, yMin, yMax float64) {
	if snap.BBox != nil {
		return snap.BBox.LonMin, snap.BBox.LonMax, snap.BBox.LatMin, snap.BBox.LatMax
	}

	xMin, yMin = 180, 90
	xMax, yMax = -180, -90
	markers := Markers(snap.Records)
	if len(markers) == 0 {
		return -180, 180, -90, 90
	}
	for _, m := range markers {
		xMin = math.Min(xMin, m.Longitude)
		xMax = math.Max(xMax, m.Longitude)
		yMin = math.Min(yMin, m.Latitude)
		yMax = math.Max(yMax, m.Latitude)
	}
	return math.Floor(xMin), math.Ceil(xMax), math.Floor(yMin), math.Ceil(yMax)
}

// MapExporter rewrites a standalone HTML map after every successful cycle
type MapExporter struct {
	path   string
	logger *logger.Logger
}

// NewMapExporter creates an exporter writing to path
func NewMapExporter(path string, logger *logger.Logger) *MapExporter {
	return &MapExporter{
		path:   path,
		logger: logger.Named("map-export"),
	}
}

// OnSnapshot writes the map for snap, replacing the previous file atomically
func (e *MapExporter) OnSnapshot(_ context.Context, snap poller.Snapshot) error {
	if err := ExportMapFile(e.path, snap); err != nil {
		return err
	}
	e.logger.Debug("Map exported",
		logger.String("path", e.path),
		logger.Int("markers", len(Markers(snap.Records))),
	)
	return nil
}

// OnFailure keeps the last exported map in place
func (e *MapExporter) OnFailure(context.Context, time.Time, error) {}

// ExportMapFile renders snap into path via a temporary file and rename
func ExportMapFile(path string, snap poller.Snapshot) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".map-*.html")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := RenderMap(tmp, snap); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move map into place: %w", err)
	}
	return nil
}
