package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnvVars(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		envVars  map[string]string
		expected string
	}{
		{
			name:  "expand single env var",
			input: "password: ${TEST_MT5_PASSWORD}",
			envVars: map[string]string{
				"TEST_MT5_PASSWORD": "hunter2",
			},
			expected: "password: hunter2",
		},
		{
			name:  "expand multiple env vars",
			input: "login: ${TEST_LOGIN}\nserver: ${TEST_SERVER}",
			envVars: map[string]string{
				"TEST_LOGIN":  "12345678",
				"TEST_SERVER": "Broker-Demo",
			},
			expected: "login: 12345678\nserver: Broker-Demo",
		},
		{
			name:     "missing env var returns empty string",
			input:    "password: ${MISSING_VAR}",
			envVars:  map[string]string{},
			expected: "password: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				os.Setenv(k, v)
				defer os.Unsetenv(k)
			}

			result := expandEnvVars(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 5001, cfg.Server.Port)
	assert.Equal(t, 3, cfg.Connection.MaxAttempts)
	assert.Equal(t, 1.0, cfg.Connection.BaseDelaySeconds)
	assert.Equal(t, []int{10004, 10005, 10006}, cfg.Classification.ConnectionErrorCodes)
	assert.Equal(t, []int{10018, 10019, 10020}, cfg.Classification.ConnectionRetcodes)
	assert.Equal(t, 20, cfg.Trading.DefaultDeviation)

	require.NoError(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gateway.yaml")

	os.Setenv("TEST_CFG_PASSWORD", "s3cret")
	defer os.Unsetenv("TEST_CFG_PASSWORD")

	content := `
server:
  port: 8080
terminal:
  bridge_url: "ws://localhost:9000/bridge"
  login: 555
  password: ${TEST_CFG_PASSWORD}
  server: "Broker-Demo"
connection:
  max_attempts: 5
  base_delay_seconds: 0.5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, int64(555), cfg.Terminal.Login)
	assert.Equal(t, Secret("s3cret"), cfg.Terminal.Password)
	assert.Equal(t, 5, cfg.Connection.MaxAttempts)
	assert.Equal(t, 0.5, cfg.Connection.BaseDelaySeconds)

	// Fields absent from the file keep their defaults.
	assert.Equal(t, 20, cfg.Trading.DefaultDeviation)
	assert.Equal(t, "INFO", cfg.System.LogLevel)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/gateway.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{
			name:    "invalid port",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantMsg: "server.port",
		},
		{
			name:    "non-websocket bridge url",
			mutate:  func(c *Config) { c.Terminal.BridgeURL = "http://localhost:8222" },
			wantMsg: "terminal.bridge_url",
		},
		{
			name:    "zero max attempts",
			mutate:  func(c *Config) { c.Connection.MaxAttempts = 0 },
			wantMsg: "connection.max_attempts",
		},
		{
			name:    "negative base delay",
			mutate:  func(c *Config) { c.Connection.BaseDelaySeconds = -1 },
			wantMsg: "connection.base_delay_seconds",
		},
		{
			name:    "zero close workers",
			mutate:  func(c *Config) { c.Trading.CloseWorkers = 0 },
			wantMsg: "trading.close_workers",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.System.LogLevel = "CHATTY" },
			wantMsg: "system.log_level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantMsg),
				"error %q should mention %q", err.Error(), tt.wantMsg)
		})
	}
}

func TestSecretRedaction(t *testing.T) {
	s := Secret("topsecret")
	assert.Equal(t, "[REDACTED]", s.String())

	j, err := s.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"[REDACTED]"`, string(j))

	assert.Equal(t, "", Secret("").String())
}
