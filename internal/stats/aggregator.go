package stats

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/yegors/flight-tracker/internal/opensky"
)

// TimestampLayout is how payload timestamps are shown to users
const TimestampLayout = "2006-01-02 15:04:05 UTC"

// SummaryMetrics are the per-cycle aggregates over a normalized record set
type SummaryMetrics struct {
	Total       int     `json:"total"`
	OnGround    int     `json:"on_ground"`
	InAir       int     `json:"in_air"`
	AvgAltitude float64 `json:"avg_altitude"`
}

// Summarize computes counts and the mean geometric altitude.
// Records whose on-ground flag is null count as in the air. The mean of an
// empty set is 0.
func Summarize(records []opensky.StateVector) SummaryMetrics {
	m := SummaryMetrics{Total: len(records)}
	if m.Total == 0 {
		return m
	}

	altitudes := make([]float64, len(records))
	for i, r := range records {
		if r.IsOnGround() {
			m.OnGround++
		}
		altitudes[i] = r.GeoAltitude
	}
	m.InAir = m.Total - m.OnGround
	m.AvgAltitude = stat.Mean(altitudes, nil)

	return m
}

// FormatTimestamp renders an epoch-seconds payload time in UTC
func FormatTimestamp(epoch int64) string {
	return time.Unix(epoch, 0).UTC().Format(TimestampLayout)
}

// FormatLine renders the one-line console summary for a cycle
func (m SummaryMetrics) FormatLine(epoch int64) string {
	return fmt.Sprintf("[%s] Total: %d | In Air: %d | On Ground: %d | Avg Alt: %.1fm",
		FormatTimestamp(epoch), m.Total, m.InAir, m.OnGround, m.AvgAltitude)
}
