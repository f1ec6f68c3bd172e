// Package config handles configuration management with validation.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete gateway configuration.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Terminal       TerminalConfig       `yaml:"terminal"`
	Connection     ConnectionConfig     `yaml:"connection"`
	Classification ClassificationConfig `yaml:"classification"`
	Trading        TradingConfig        `yaml:"trading"`
	System         SystemConfig         `yaml:"system"`
	Telemetry      TelemetryConfig      `yaml:"telemetry"`
}

// ServerConfig contains HTTP API settings.
type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// TerminalConfig contains the MT5 terminal bridge settings.
type TerminalConfig struct {
	BridgeURL          string `yaml:"bridge_url"`
	Login              int64  `yaml:"login"`
	Password           Secret `yaml:"password"`
	Server             string `yaml:"server"`
	CallTimeoutSeconds int    `yaml:"call_timeout_seconds"`
}

// ConnectionConfig contains the reconnect policy. Delay before attempt k>1 is
// base_delay_seconds * 2^(k-2).
type ConnectionConfig struct {
	MaxAttempts      int     `yaml:"max_attempts"`
	BaseDelaySeconds float64 `yaml:"base_delay_seconds"`
}

// ClassificationConfig carries the venue code sets treated as connection
// faults. The authoritative catalog belongs to the terminal vendor and may
// expand, so these are configuration rather than constants.
type ClassificationConfig struct {
	ConnectionErrorCodes []int `yaml:"connection_error_codes"`
	ConnectionRetcodes   []int `yaml:"connection_retcodes"`
}

// TradingConfig contains execution settings.
type TradingConfig struct {
	DefaultDeviation int `yaml:"default_deviation"`
	OrderRateLimit   int `yaml:"order_rate_limit"`
	CloseWorkers     int `yaml:"close_workers"`
}

// SystemConfig contains system settings.
type SystemConfig struct {
	LogLevel string `yaml:"log_level"`
}

// TelemetryConfig contains telemetry settings.
type TelemetryConfig struct {
	EnableMetrics bool `yaml:"enable_metrics"`
	MetricsPort   int  `yaml:"metrics_port"`
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// LoadConfig loads configuration from a YAML file with environment variable
// expansion. A .env file next to the process is honored first so that
// ${VAR} references resolve against it.
func LoadConfig(filename string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	config := Default()
	if err := yaml.Unmarshal([]byte(expandedData), config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Default returns a configuration populated with defaults. Reconnect policy
// defaults mirror the terminal bridge's documented behavior: three attempts,
// one second base delay.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        5001,
			CORSOrigins: []string{"*"},
		},
		Terminal: TerminalConfig{
			BridgeURL:          "ws://127.0.0.1:8222/bridge",
			CallTimeoutSeconds: 30,
		},
		Connection: ConnectionConfig{
			MaxAttempts:      3,
			BaseDelaySeconds: 1.0,
		},
		Classification: ClassificationConfig{
			ConnectionErrorCodes: []int{10004, 10005, 10006},
			ConnectionRetcodes:   []int{10018, 10019, 10020},
		},
		Trading: TradingConfig{
			DefaultDeviation: 20,
			OrderRateLimit:   25,
			CloseWorkers:     4,
		},
		System: SystemConfig{
			LogLevel: "INFO",
		},
		Telemetry: TelemetryConfig{
			EnableMetrics: true,
			MetricsPort:   9091,
		},
	}
}

// Validate performs comprehensive validation of the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, ValidationError{
			Field: "server.port", Value: c.Server.Port,
			Message: "must be between 1 and 65535",
		}.Error())
	}

	if !strings.HasPrefix(c.Terminal.BridgeURL, "ws://") && !strings.HasPrefix(c.Terminal.BridgeURL, "wss://") {
		errs = append(errs, ValidationError{
			Field: "terminal.bridge_url", Value: c.Terminal.BridgeURL,
			Message: "must be a ws:// or wss:// URL",
		}.Error())
	}

	if c.Terminal.CallTimeoutSeconds < 1 {
		errs = append(errs, ValidationError{
			Field: "terminal.call_timeout_seconds", Value: c.Terminal.CallTimeoutSeconds,
			Message: "must be at least 1",
		}.Error())
	}

	if c.Connection.MaxAttempts < 1 {
		errs = append(errs, ValidationError{
			Field: "connection.max_attempts", Value: c.Connection.MaxAttempts,
			Message: "must be at least 1",
		}.Error())
	}

	if c.Connection.BaseDelaySeconds <= 0 {
		errs = append(errs, ValidationError{
			Field: "connection.base_delay_seconds", Value: c.Connection.BaseDelaySeconds,
			Message: "must be positive",
		}.Error())
	}

	if c.Trading.DefaultDeviation < 0 {
		errs = append(errs, ValidationError{
			Field: "trading.default_deviation", Value: c.Trading.DefaultDeviation,
			Message: "must be non-negative",
		}.Error())
	}

	if c.Trading.OrderRateLimit < 1 {
		errs = append(errs, ValidationError{
			Field: "trading.order_rate_limit", Value: c.Trading.OrderRateLimit,
			Message: "must be at least 1",
		}.Error())
	}

	if c.Trading.CloseWorkers < 1 {
		errs = append(errs, ValidationError{
			Field: "trading.close_workers", Value: c.Trading.CloseWorkers,
			Message: "must be at least 1",
		}.Error())
	}

	validLevels := []string{"DEBUG", "INFO", "WARN", "WARNING", "ERROR", "FATAL"}
	level := strings.ToUpper(c.System.LogLevel)
	if !contains(validLevels, level) {
		errs = append(errs, ValidationError{
			Field: "system.log_level", Value: c.System.LogLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", ")),
		}.Error())
	}

	if c.Telemetry.EnableMetrics && (c.Telemetry.MetricsPort <= 0 || c.Telemetry.MetricsPort > 65535) {
		errs = append(errs, ValidationError{
			Field: "telemetry.metrics_port", Value: c.Telemetry.MetricsPort,
			Message: "must be between 1 and 65535",
		}.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errs, "\n"))
	}

	return nil
}

// expandEnvVars expands ${VAR} references in the YAML content.
func expandEnvVars(s string) string {
	return os.Expand(s, os.Getenv)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
