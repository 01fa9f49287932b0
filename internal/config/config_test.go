package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_MergesDefaults(t *testing.T) {
	path := writeConfig(t, `
[endpoint]
url = "https://answers.example.com/api"

[log]
level = "debug"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://answers.example.com/api", cfg.Endpoint.URL)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Untouched sections keep their defaults.
	assert.Equal(t, DefaultHTTPAddr, cfg.Server.Addr)
	assert.Equal(t, DefaultHistoryCap, cfg.History.Capacity)
	assert.Equal(t, DefaultSweepSpec, cfg.History.SweepSpec)
	assert.Equal(t, DefaultPGHost, cfg.Postgres.Host)
	assert.Equal(t, 30*time.Second, cfg.Endpoint.Timeout())
}

func TestLoad_MissingEndpointURL(t *testing.T) {
	path := writeConfig(t, `
[log]
level = "info"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate config")
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	path := writeConfig(t, `
[endpoint]
url = "https://answers.example.com/api"

[log]
level = "verbose"
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_MissingFileFailsValidation(t *testing.T) {
	// Defaults alone carry no endpoint URL, so they must not validate.
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}

func TestSweepIdleDuration(t *testing.T) {
	cfg := HistoryConfig{SweepIdle: "45m"}
	d, err := cfg.SweepIdleDuration()
	require.NoError(t, err)
	assert.Equal(t, 45*time.Minute, d)

	cfg = HistoryConfig{}
	d, err = cfg.SweepIdleDuration()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, d)

	cfg = HistoryConfig{SweepIdle: "soon"}
	_, err = cfg.SweepIdleDuration()
	require.Error(t, err)
}

func TestEndpointTimeout(t *testing.T) {
	assert.Equal(t, 10*time.Second, EndpointConfig{TimeoutSeconds: 10}.Timeout())
	assert.Equal(t, 30*time.Second, EndpointConfig{}.Timeout())
}
