// Package config provides the configuration schema, loader and file watcher
// for the mcp-sapling server.
package config

import (
	"log/slog"
	"time"

	"github.com/MrWong99/mcp-sapling/internal/mcp"
)

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level converts l to the matching [slog.Level]. Unknown values map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Defaults applied by [ApplyDefaults].
const (
	DefaultBinary      = "sl"
	DefaultTimeout     = 30 * time.Second
	DefaultListenAddr  = ":8080"
	DefaultServiceName = "mcp-sapling"
)

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Sapling   SaplingConfig   `yaml:"sapling"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig holds transport and logging settings.
type ServerConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// Transport selects how clients connect: "stdio" or "streamable-http".
	Transport mcp.Transport `yaml:"transport"`

	// ListenAddr is the TCP address the HTTP transport listens on
	// (e.g., ":8080"). Ignored for stdio.
	ListenAddr string `yaml:"listen_addr"`
}

// SaplingConfig controls how Sapling commands are run.
type SaplingConfig struct {
	// Binary is the program name looked up on PATH, or an absolute path.
	Binary string `yaml:"binary"`

	// Timeout is the wall-clock budget of every spawned process.
	Timeout time.Duration `yaml:"timeout"`
}

// TelemetryConfig controls OpenTelemetry export.
type TelemetryConfig struct {
	// ServiceName is reported as the OTel service.name resource attribute.
	ServiceName string `yaml:"service_name"`

	// Metrics exposes Prometheus metrics at /metrics on the HTTP listener.
	Metrics bool `yaml:"metrics"`
}

// ApplyDefaults fills every unset field with its default value.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Server.Transport == "" {
		cfg.Server.Transport = mcp.TransportStdio
	}
	if cfg.Server.ListenAddr == "" && cfg.Server.Transport == mcp.TransportStreamableHTTP {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Sapling.Binary == "" {
		cfg.Sapling.Binary = DefaultBinary
	}
	if cfg.Sapling.Timeout == 0 {
		cfg.Sapling.Timeout = DefaultTimeout
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = DefaultServiceName
	}
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
