package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yegors/flight-tracker/internal/config"
	"github.com/yegors/flight-tracker/internal/websocket"
	"github.com/yegors/flight-tracker/pkg/logger"
)

// Router is the API router
type Router struct {
	handler    *Handler
	middleware *Middleware
	metrics    http.Handler
	config     *config.Config
	logger     *logger.Logger
}

// NewRouter creates a new API router. history, wsServer and metrics may be nil.
func NewRouter(collector Collector, state *State, history HistoryReader, wsServer *websocket.Server, metrics http.Handler, config *config.Config, logger *logger.Logger) *Router {
	return &Router{
		handler:    NewHandler(collector, state, history, wsServer, NewRegionCache(config.RegionCacheTTL()), config.BoundingBox(), logger),
		middleware: NewMiddleware(logger),
		metrics:    metrics,
		config:     config,
		logger:     logger.Named("api-router"),
	}
}

// Routes returns the API routes
func (r *Router) Routes() http.Handler {
	router := chi.NewRouter()

	// Middleware
	router.Use(r.middleware.RequestID)
	router.Use(r.middleware.Logger)
	router.Use(r.middleware.Recoverer)
	router.Use(r.middleware.CORS(r.config.Server.CORSAllowedOrigins))

	// API routes
	router.Route("/api/v1", func(router chi.Router) {
		// Aircraft routes
		router.Get("/aircraft", r.handler.GetAircraft)
		router.Get("/aircraft/{callsign}/track", r.handler.GetTrack)

		router.Get("/summary", r.handler.GetSummary)
		router.Get("/map", r.handler.GetMap)
		router.Get("/history", r.handler.GetHistory)

		// WebSocket route
		router.Get("/ws", r.handler.HandleWebSocket)

		// Health check
		router.Get("/health", r.handler.GetHealth)
	})

	if r.metrics != nil && r.config.Metrics.Enabled {
		router.Handle(r.config.Metrics.Path, r.metrics)
	}

	return router
}
