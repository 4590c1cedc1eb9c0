package render

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/flight-tracker/internal/opensky"
	"github.com/yegors/flight-tracker/internal/poller"
	"github.com/yegors/flight-tracker/internal/stats"
	"github.com/yegors/flight-tracker/pkg/logger"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool     { return &b }

func sampleSnapshot() poller.Snapshot {
	records := []opensky.StateVector{
		{ICAO24: strPtr("3c6444"), Callsign: "DLH1", OriginCountry: strPtr("Germany"), Latitude: 52.5, Longitude: 13.4, GeoAltitude: 1000.7, Velocity: 200, OnGround: boolPtr(false)},
		{ICAO24: strPtr("4b1805"), Callsign: "SWR2", OriginCountry: strPtr("Switzerland"), Latitude: 52.36, Longitude: 13.5, OnGround: boolPtr(true)},
		{ICAO24: strPtr("aaaaaa"), Callsign: "NOPOS", OriginCountry: strPtr("France")},
	}
	return poller.Snapshot{
		Timestamp: 1700000000,
		BBox:      &opensky.BoundingBox{LatMin: 52.2, LatMax: 52.7, LonMin: 13.0, LonMax: 13.8},
		Records:   records,
		Summary:   stats.Summarize(records),
	}
}

func TestConsoleLines(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	require.NoError(t, c.OnSnapshot(context.Background(), sampleSnapshot()))
	c.OnFailure(context.Background(), time.Now(), errors.New("connection refused"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "[2023-11-14 22:13:20 UTC] Total: 3 | In Air: 2 | On Ground: 1 | Avg Alt: 333.6m", lines[0])
	assert.Equal(t, "Error: connection refused", lines[1])
}

func TestTableKeepsOrderAndFields(t *testing.T) {
	rows := Table(sampleSnapshot().Records)
	require.Len(t, rows, 3)
	assert.Equal(t, TableRow{
		ICAO24: "3c6444", Callsign: "DLH1", OriginCountry: "Germany",
		Latitude: 52.5, Longitude: 13.4, GeoAltitude: 1000.7, Velocity: 200,
	}, rows[0])
	assert.True(t, rows[1].OnGround)
	assert.Equal(t, "NOPOS", rows[2].Callsign)
}

func TestMarkersSkipMissingPosition(t *testing.T) {
	markers := Markers(sampleSnapshot().Records)
	require.Len(t, markers, 2)
	assert.Equal(t, "DLH1 / Germany / Alt: 1000m", markers[0].Label)
	assert.False(t, markers[0].OnGround)
	assert.True(t, markers[1].OnGround)
}

func TestRenderMap(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderMap(&buf, sampleSnapshot()))

	html := buf.String()
	assert.Contains(t, html, "Aircraft Positions")
	assert.Contains(t, html, "DLH1 / Germany")
	assert.Contains(t, html, "on ground")
	assert.NotContains(t, html, "NOPOS")
}

func TestRenderMapEmptySnapshot(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderMap(&buf, poller.Snapshot{Timestamp: 1, Records: []opensky.StateVector{}}))
	assert.Contains(t, buf.String(), "Aircraft Positions")
}

func TestMapExporterWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "current_map.html")
	exp := NewMapExporter(path, logger.NewNop())

	require.NoError(t, exp.OnSnapshot(context.Background(), sampleSnapshot()))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "SWR2")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must be cleaned up")
}

func TestExportMapFileBadDirectory(t *testing.T) {
	err := ExportMapFile(filepath.Join(t.TempDir(), "missing", "map.html"), sampleSnapshot())
	assert.Error(t, err)
}
