package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/yegors/flight-tracker/internal/opensky"
)

// Run modes
const (
	ModeTerminal  = "terminal"
	ModeDashboard = "dashboard"
)

// Environment variables that override credentials from the file
const (
	EnvUsername = "OPENSKY_USERNAME"
	EnvPassword = "OPENSKY_PASSWORD"
)

// Config is the full application configuration
type Config struct {
	Mode    string        `toml:"mode"`
	OpenSky OpenSkyConfig `toml:"opensky"`
	Poller  PollerConfig  `toml:"poller"`
	Server  ServerConfig  `toml:"server"`
	Logging LoggingConfig `toml:"logging"`
	Storage StorageConfig `toml:"storage"`
	Metrics MetricsConfig `toml:"metrics"`
	Tracing TracingConfig `toml:"tracing"`
	Export  ExportConfig  `toml:"export"`
}

// OpenSkyConfig configures the upstream states API
type OpenSkyConfig struct {
	StatesURL             string               `toml:"states_url"`
	Username              string               `toml:"username"`
	Password              string               `toml:"password"`
	RequestTimeoutSeconds int                  `toml:"request_timeout_seconds"`
	FullWorld             bool                 `toml:"full_world"` // ignore bounding_box
	BoundingBox           *opensky.BoundingBox `toml:"bounding_box"`
}

// PollerConfig configures the poll loop
type PollerConfig struct {
	IntervalSeconds int `toml:"interval_seconds"`
}

// ServerConfig configures the dashboard HTTP server
type ServerConfig struct {
	Addr               string   `toml:"addr"`
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`
	ShutdownSeconds    int      `toml:"shutdown_seconds"`
	MaxConnections     int      `toml:"max_connections"` // 0 means unlimited
	RegionCacheSeconds int      `toml:"region_cache_seconds"`
}

// LoggingConfig configures pkg/logger
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// StorageConfig configures the cycle history database
type StorageConfig struct {
	Enabled        bool   `toml:"enabled"`
	Path           string `toml:"path"`
	RetentionHours int    `toml:"retention_hours"` // 0 keeps everything
}

// MetricsConfig configures Prometheus exposition
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// TracingConfig configures OpenTelemetry tracing
type TracingConfig struct {
	Enabled     bool    `toml:"enabled"`
	Exporter    string  `toml:"exporter"` // stdout | otlp
	Endpoint    string  `toml:"endpoint"`
	ServiceName string  `toml:"service_name"`
	SampleRatio float64 `toml:"sample_ratio"`
}

// ExportConfig configures the standalone map export of the terminal mode
type ExportConfig struct {
	MapFile string `toml:"map_file"`
}

// DefaultConfig returns the built-in configuration: a Berlin bounding box
// polled every 30 seconds.
func DefaultConfig() *Config {
	return &Config{
		Mode: ModeTerminal,
		OpenSky: OpenSkyConfig{
			StatesURL:             opensky.DefaultStatesURL,
			RequestTimeoutSeconds: 10,
			BoundingBox: &opensky.BoundingBox{
				LatMin: 52.2,
				LatMax: 52.7,
				LonMin: 13.0,
				LonMax: 13.8,
			},
		},
		Poller: PollerConfig{
			IntervalSeconds: 30,
		},
		Server: ServerConfig{
			Addr:               ":8080",
			ShutdownSeconds:    5,
			RegionCacheSeconds: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Storage: StorageConfig{
			Path: "flight-tracker.db",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Tracing: TracingConfig{
			Exporter:    "stdout",
			ServiceName: "flight-tracker",
			SampleRatio: 1.0,
		},
	}
}

// Load reads a TOML file over the defaults. An empty path returns the
// defaults with environment overrides applied.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		md, err := toml.DecodeFile(path, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvUsername); v != "" {
		c.OpenSky.Username = v
	}
	if v := os.Getenv(EnvPassword); v != "" {
		c.OpenSky.Password = v
	}
}

// Validate checks the configuration for values the application cannot run with
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeTerminal, ModeDashboard:
	default:
		return fmt.Errorf("unsupported mode: %q", c.Mode)
	}

	if c.OpenSky.BoundingBox != nil {
		if err := c.OpenSky.BoundingBox.Validate(); err != nil {
			return fmt.Errorf("opensky.bounding_box: %w", err)
		}
	}
	if c.OpenSky.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("opensky.request_timeout_seconds must be positive")
	}
	if c.Poller.IntervalSeconds <= 0 {
		return fmt.Errorf("poller.interval_seconds must be positive")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level: %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("unsupported log format: %q", c.Logging.Format)
	}

	if c.Server.MaxConnections < 0 {
		return fmt.Errorf("server.max_connections must not be negative")
	}
	if c.Server.RegionCacheSeconds < 0 {
		return fmt.Errorf("server.region_cache_seconds must not be negative")
	}
	if c.Storage.RetentionHours < 0 {
		return fmt.Errorf("storage.retention_hours must not be negative")
	}
	if c.Storage.Enabled && c.Storage.Path == "" {
		return fmt.Errorf("storage.path is required when storage is enabled")
	}
	if c.Tracing.Enabled {
		switch c.Tracing.Exporter {
		case "stdout", "otlp":
		default:
			return fmt.Errorf("unsupported tracing exporter: %q", c.Tracing.Exporter)
		}
		if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
			return fmt.Errorf("tracing.sample_ratio must be within [0, 1]")
		}
	}
	return nil
}

// BoundingBox returns the configured region, or nil for a full-world query
func (c *Config) BoundingBox() *opensky.BoundingBox {
	if c.OpenSky.FullWorld || c.OpenSky.BoundingBox == nil {
		return nil
	}
	bbox := *c.OpenSky.BoundingBox
	return &bbox
}

// Credentials returns the upstream credentials
func (c *Config) Credentials() opensky.Credentials {
	return opensky.Credentials{Username: c.OpenSky.Username, Password: c.OpenSky.Password}
}

// RequestTimeout returns the HTTP timeout for upstream requests
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.OpenSky.RequestTimeoutSeconds) * time.Second
}

// PollInterval returns the pause between poll cycles
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Poller.IntervalSeconds) * time.Second
}

// Retention returns how long stored cycles are kept, or 0 for no pruning
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Storage.RetentionHours) * time.Hour
}

// RegionCacheTTL returns how long ad-hoc region results are reused
func (c *Config) RegionCacheTTL() time.Duration {
	return time.Duration(c.Server.RegionCacheSeconds) * time.Second
}

// ShutdownTimeout returns how long the HTTP server may take to drain
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownSeconds) * time.Second
}
