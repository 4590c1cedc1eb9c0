package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/flight-tracker/internal/opensky"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvUsername, "")
	t.Setenv(EnvPassword, "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ModeTerminal, cfg.Mode)
	assert.Equal(t, 30*time.Second, cfg.PollInterval())
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout())
	assert.Equal(t, &opensky.BoundingBox{LatMin: 52.2, LatMax: 52.7, LonMin: 13.0, LonMax: 13.8}, cfg.BoundingBox())
	assert.False(t, cfg.Credentials().Valid())
}

func TestLoadFile(t *testing.T) {
	t.Setenv(EnvUsername, "")
	t.Setenv(EnvPassword, "")

	path := writeConfig(t, `
mode = "dashboard"

[opensky]
request_timeout_seconds = 5

[opensky.bounding_box]
lamin = 50.0
lamax = 55.0
lomin = 5.0
lomax = 15.0

[poller]
interval_seconds = 60

[logging]
level = "debug"
format = "json"

[storage]
enabled = true
path = "/tmp/history.db"
retention_hours = 24

[server]
max_connections = 64
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ModeDashboard, cfg.Mode)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout())
	assert.Equal(t, time.Minute, cfg.PollInterval())
	assert.Equal(t, &opensky.BoundingBox{LatMin: 50, LatMax: 55, LonMin: 5, LonMax: 15}, cfg.BoundingBox())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Storage.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.Retention())
	assert.Equal(t, 64, cfg.Server.MaxConnections)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoadFullWorld(t *testing.T) {
	path := writeConfig(t, "[opensky]\nfull_world = true\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Nil(t, cfg.BoundingBox())
}

func TestLoadEnvCredentials(t *testing.T) {
	t.Setenv(EnvUsername, "pilot")
	t.Setenv(EnvPassword, "secret")

	cfg, err := Load(writeConfig(t, "[opensky]\nusername = \"file-user\"\n"))
	require.NoError(t, err)
	assert.Equal(t, opensky.Credentials{Username: "pilot", Password: "secret"}, cfg.Credentials())
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"inverted bbox":  "[opensky.bounding_box]\nlamin = 55.0\nlamax = 50.0\nlomin = 5.0\nlomax = 15.0\n",
		"zero interval":  "[poller]\ninterval_seconds = 0\n",
		"zero timeout":   "[opensky]\nrequest_timeout_seconds = 0\n",
		"bad mode":       "mode = \"gui\"\n",
		"bad log level":  "[logging]\nlevel = \"verbose\"\n",
		"unknown key":    "[poller]\nintervall = 3\n",
		"bad exporter":   "[tracing]\nenabled = true\nexporter = \"zipkin\"\n",
		"storage nopath": "[storage]\nenabled = true\npath = \"\"\n",
		"nan bbox":       "[opensky.bounding_box]\nlamin = nan\nlamax = 55.0\nlomin = 5.0\nlomax = 15.0\n",
		"neg retention":  "[storage]\nretention_hours = -1\n",
		"neg max conns":  "[server]\nmax_connections = -1\n",
		"not toml":       "this is = = not toml",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestExampleConfigLoads(t *testing.T) {
	t.Setenv(EnvUsername, "")
	t.Setenv(EnvPassword, "")

	cfg, err := Load(filepath.Join("..", "..", "config.example.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().BoundingBox(), cfg.BoundingBox())
	assert.Equal(t, 10*time.Second, cfg.RegionCacheTTL())
}
