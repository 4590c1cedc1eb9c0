package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/yegors/flight-tracker/internal/opensky"
	"github.com/yegors/flight-tracker/internal/poller"
	"github.com/yegors/flight-tracker/internal/render"
	"github.com/yegors/flight-tracker/internal/stats"
	"github.com/yegors/flight-tracker/internal/storage/sqlite"
	"github.com/yegors/flight-tracker/internal/websocket"
	"github.com/yegors/flight-tracker/pkg/logger"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

// Collector runs a one-off cycle for an arbitrary region
type Collector interface {
	Collect(ctx context.Context, bbox *opensky.BoundingBox) (poller.Snapshot, error)
}

// HistoryReader reads stored cycles
type HistoryReader interface {
	GetRecentCycles(ctx context.Context, limit int) ([]*sqlite.CycleRecord, error)
	GetPositionsByCallsign(ctx context.Context, callsign string, limit int) ([]*sqlite.PositionRecord, error)
}

// errNoSnapshot is returned while the first cycle has not completed
var errNoSnapshot = errors.New("no data available yet")

// Handler contains the HTTP handlers for the dashboard API
type Handler struct {
	collector   Collector
	state       *State
	history     HistoryReader // nil when storage is disabled
	wsServer    *websocket.Server
	regions     *RegionCache
	defaultBBox *opensky.BoundingBox
	logger      *logger.Logger
	startedAt   time.Time
}

// NewHandler creates a new handler
func NewHandler(collector Collector, state *State, history HistoryReader, wsServer *websocket.Server, regions *RegionCache, defaultBBox *opensky.BoundingBox, logger *logger.Logger) *Handler {
	return &Handler{
		collector:   collector,
		state:       state,
		history:     history,
		wsServer:    wsServer,
		regions:     regions,
		defaultBBox: defaultBBox,
		logger:      logger.Named("api-handler"),
		startedAt:   time.Now(),
	}
}

// AircraftResponse is the body of GET /aircraft
type AircraftResponse struct {
	Timestamp int64                `json:"timestamp"`
	Time      string               `json:"time"`
	BBox      *opensky.BoundingBox `json:"bbox,omitempty"`
	Count     int                  `json:"count"`
	Summary   stats.SummaryMetrics `json:"summary"`
	Aircraft  []render.TableRow    `json:"aircraft"`
}

// SummaryResponse is the body of GET /summary
type SummaryResponse struct {
	Timestamp int64                `json:"timestamp"`
	Time      string               `json:"time"`
	Summary   stats.SummaryMetrics `json:"summary"`
	Line      string               `json:"line"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status           string     `json:"status"`
	Uptime           string     `json:"uptime"`
	LastSnapshot     *time.Time `json:"last_snapshot,omitempty"`
	LastError        string     `json:"last_error,omitempty"`
	LastErrorAt      *time.Time `json:"last_error_at,omitempty"`
	WebSocketClients int        `json:"websocket_clients"`
}

// GetAircraft returns the aircraft table. A bounding box in the query or
// refresh=true runs a fresh cycle instead of serving the latest snapshot;
// bounding box results are reused while they are in the region cache.
func (h *Handler) GetAircraft(w http.ResponseWriter, r *http.Request) {
	bbox, err := parseBoundingBox(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	refresh := false
	if v := r.URL.Query().Get("refresh"); v != "" {
		refresh, err = strconv.ParseBool(v)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid refresh value %q", v))
			return
		}
	}

	var snap poller.Snapshot
	switch {
	case bbox != nil:
		if cached, ok := h.regions.Get(*bbox); ok {
			snap = cached
			break
		}
		snap, err = h.collector.Collect(r.Context(), bbox)
		if err != nil {
			h.writeError(w, http.StatusBadGateway, err)
			return
		}
		h.regions.Set(*bbox, snap)
	case refresh:
		snap, err = h.collector.Collect(r.Context(), h.defaultBBox)
		if err != nil {
			h.writeError(w, http.StatusBadGateway, err)
			return
		}
		_ = h.state.OnSnapshot(r.Context(), snap)
	default:
		var ok bool
		if snap, ok = h.state.Latest(); !ok {
			h.writeUnavailable(w)
			return
		}
	}

	h.writeJSON(w, http.StatusOK, AircraftResponse{
		Timestamp: snap.Timestamp,
		Time:      stats.FormatTimestamp(snap.Timestamp),
		BBox:      snap.BBox,
		Count:     len(snap.Records),
		Summary:   snap.Summary,
		Aircraft:  render.Table(snap.Records),
	})
}

// GetSummary returns the summary metrics of the latest snapshot
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.state.Latest()
	if !ok {
		h.writeUnavailable(w)
		return
	}

	h.writeJSON(w, http.StatusOK, SummaryResponse{
		Timestamp: snap.Timestamp,
		Time:      stats.FormatTimestamp(snap.Timestamp),
		Summary:   snap.Summary,
		Line:      snap.Summary.FormatLine(snap.Timestamp),
	})
}

// GetMap renders the latest snapshot as an HTML scatter map
func (h *Handler) GetMap(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.state.Latest()
	if !ok {
		h.writeUnavailable(w)
		return
	}

	var buf bytes.Buffer
	if err := render.RenderMap(&buf, snap); err != nil {
		h.logger.Error("Failed to render map", logger.Error(err))
		h.writeError(w, http.StatusInternalServerError, errors.New("failed to render map"))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// GetHistory returns the most recent stored cycles
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeError(w, http.StatusNotFound, errors.New("history storage is disabled"))
		return
	}

	limit, err := parseLimit(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	cycles, err := h.history.GetRecentCycles(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to read history", logger.Error(err))
		h.writeError(w, http.StatusInternalServerError, errors.New("failed to read history"))
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(cycles),
		"cycles": cycles,
	})
}

// GetTrack returns the stored positions of one callsign
func (h *Handler) GetTrack(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.writeError(w, http.StatusNotFound, errors.New("history storage is disabled"))
		return
	}

	callsign := chi.URLParam(r, "callsign")
	limit, err := parseLimit(r)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}

	positions, err := h.history.GetPositionsByCallsign(r.Context(), callsign, limit)
	if err != nil {
		h.logger.Error("Failed to read track", logger.Error(err), logger.String("callsign", callsign))
		h.writeError(w, http.StatusInternalServerError, errors.New("failed to read track"))
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"callsign":  callsign,
		"count":     len(positions),
		"positions": positions,
	})
}

// GetHealth reports whether the poller has produced fresh data
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status: "ok",
		Uptime: time.Since(h.startedAt).Round(time.Second).String(),
	}
	if !h.state.Healthy() {
		resp.Status = "degraded"
	}
	if snap, ok := h.state.Latest(); ok {
		at := snap.FetchedAt
		resp.LastSnapshot = &at
	}
	if at, err := h.state.LastFailure(); err != nil {
		resp.LastError = err.Error()
		resp.LastErrorAt = &at
	}
	if h.wsServer != nil {
		resp.WebSocketClients = h.wsServer.ClientCount()
	}

	h.writeJSON(w, http.StatusOK, resp)
}

// HandleWebSocket upgrades the connection for live updates
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.wsServer == nil {
		h.writeError(w, http.StatusNotFound, errors.New("websocket is disabled"))
		return
	}
	h.wsServer.HandleWebSocket(w, r)
}

// writeUnavailable reports that no snapshot exists yet, with the last
// failure when there is one
func (h *Handler) writeUnavailable(w http.ResponseWriter) {
	err := errNoSnapshot
	if _, cause := h.state.LastFailure(); cause != nil {
		err = fmt.Errorf("%w: %v", errNoSnapshot, cause)
	}
	h.writeError(w, http.StatusServiceUnavailable, err)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", logger.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

// parseBoundingBox reads lamin, lomin, lamax and lomax. It returns nil when
// none are present; a partial or invalid box is an error.
func parseBoundingBox(r *http.Request) (*opensky.BoundingBox, error) {
	q := r.URL.Query()
	keys := []string{"lamin", "lomin", "lamax", "lomax"}

	present := 0
	for _, k := range keys {
		if q.Has(k) {
			present++
		}
	}
	if present == 0 {
		return nil, nil
	}
	if present != len(keys) {
		return nil, errors.New("bounding box requires lamin, lomin, lamax and lomax")
	}

	values := make([]float64, len(keys))
	for i, k := range keys {
		v, err := strconv.ParseFloat(q.Get(k), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %q", k, q.Get(k))
		}
		values[i] = v
	}

	bbox := &opensky.BoundingBox{LatMin: values[0], LonMin: values[1], LatMax: values[2], LonMax: values[3]}
	if err := bbox.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bounding box: %w", err)
	}
	return bbox, nil
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultHistoryLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return limit, nil
}
