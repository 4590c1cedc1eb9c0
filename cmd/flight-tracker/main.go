// Command flight-tracker polls the OpenSky states API for a region and shows
// the live traffic either as one summary line per cycle on the terminal or
// through an HTTP dashboard.
//
// Usage:
//
//	flight-tracker [-config config.toml] [-mode terminal|dashboard]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/net/netutil"

	"github.com/yegors/flight-tracker/internal/api"
	"github.com/yegors/flight-tracker/internal/config"
	"github.com/yegors/flight-tracker/internal/observability"
	"github.com/yegors/flight-tracker/internal/opensky"
	"github.com/yegors/flight-tracker/internal/poller"
	"github.com/yegors/flight-tracker/internal/render"
	"github.com/yegors/flight-tracker/internal/storage/sqlite"
	"github.com/yegors/flight-tracker/internal/websocket"
	"github.com/yegors/flight-tracker/pkg/logger"
)

// readHeaderTimeout bounds how long a client may take to send request headers
const readHeaderTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to the TOML configuration file")
	mode := flag.String("mode", "", "Run mode: terminal or dashboard (overrides the config file)")
	flag.Parse()

	if err := run(*configPath, *mode); err != nil {
		fmt.Fprintf(os.Stderr, "flight-tracker: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, mode string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if mode != "" {
		cfg.Mode = mode
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("Failed to flush traces", logger.Error(err))
		}
	}()

	metrics, err := newPollerMetrics(cfg, nil)
	if err != nil {
		return err
	}

	var sinks []poller.Sink
	var history *sqlite.HistoryStorage
	if cfg.Storage.Enabled {
		db, err := sqlite.Open(cfg.Storage.Path)
		if err != nil {
			return err
		}
		defer db.Close()

		history, err = sqlite.NewHistoryStorage(db, log)
		if err != nil {
			return err
		}
		history.SetRetention(cfg.Retention())
		sinks = append(sinks, history)
	}

	client := opensky.NewClient(cfg.OpenSky.StatesURL, cfg.Credentials(), cfg.RequestTimeout(), log)
	opts := poller.Options{
		Interval:    cfg.PollInterval(),
		BoundingBox: cfg.BoundingBox(),
		Metrics:     metrics,
	}

	log.Info("Starting flight-tracker",
		logger.String("mode", cfg.Mode),
		logger.Duration("interval", opts.Interval),
		logger.Bool("authenticated", cfg.Credentials().Valid()),
		logger.Bool("storage", cfg.Storage.Enabled),
	)

	switch cfg.Mode {
	case config.ModeDashboard:
		return runDashboard(ctx, cfg, client, opts, metrics, history, sinks, log)
	default:
		return runTerminal(ctx, cfg, client, opts, sinks, log)
	}
}

// runTerminal prints one line per cycle until the context is cancelled
func runTerminal(ctx context.Context, cfg *config.Config, client *opensky.Client, opts poller.Options, sinks []poller.Sink, log *logger.Logger) error {
	console := render.NewConsole(os.Stdout)
	sinks = append(sinks, console)
	if cfg.Export.MapFile != "" {
		sinks = append(sinks, render.NewMapExporter(cfg.Export.MapFile, log))
	}

	console.Banner()
	return poller.NewService(client, opts, log, sinks...).Run(ctx)
}

// runDashboard serves the HTTP API while the poller runs in the background
func runDashboard(ctx context.Context, cfg *config.Config, client *opensky.Client, opts poller.Options, metrics *observability.PollerCollector, history *sqlite.HistoryStorage, sinks []poller.Sink, log *logger.Logger) error {
	state := api.NewState()
	wsServer := websocket.NewServer(cfg.Server.CORSAllowedOrigins, log)
	defer wsServer.Close()

	sinks = append(sinks, state, wsServer)
	service := poller.NewService(client, opts, log, sinks...)

	var historyReader api.HistoryReader
	if history != nil {
		historyReader = history
	}
	var metricsHandler http.Handler
	if metrics != nil {
		metricsHandler = metrics.Handler()
	}

	router := api.NewRouter(service, state, historyReader, wsServer, metricsHandler, cfg, log)
	server := newDashboardServer(router.Routes())

	listener, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Addr, err)
	}
	if cfg.Server.MaxConnections > 0 {
		listener = netutil.LimitListener(listener, cfg.Server.MaxConnections)
	}

	service.Start(ctx)
	defer service.Stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Dashboard listening", logger.String("addr", listener.Addr().String()))
		serveErr <- server.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("dashboard server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down dashboard")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down dashboard: %w", err)
	}
	return nil
}

// newPollerMetrics registers the poller metrics against reg. Only the dashboard
// serves /metrics, so other modes get a nil collector.
func newPollerMetrics(cfg *config.Config, reg prometheus.Registerer) (*observability.PollerCollector, error) {
	if !cfg.Metrics.Enabled || cfg.Mode != config.ModeDashboard {
		return nil, nil
	}
	return observability.NewPollerCollector(reg)
}

func newDashboardServer(handler http.Handler) *http.Server {
	return &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}
