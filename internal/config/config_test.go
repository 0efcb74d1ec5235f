package config_test

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/mcp-sapling/internal/config"
	"github.com/MrWong99/mcp-sapling/internal/mcp"
)

// ── helpers ──────────────────────────────────────────────────────────────────

const sampleYAML = `
server:
  log_level: debug
  transport: streamable-http
  listen_addr: "127.0.0.1:9090"

sapling:
  binary: /opt/sapling/bin/sl
  timeout: 45s

telemetry:
  service_name: sapling-dev
  metrics: true
`

// ── Loading ──────────────────────────────────────────────────────────────────

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("server.log_level: got %q, want %q", cfg.Server.LogLevel, config.LogDebug)
	}
	if cfg.Server.Transport != mcp.TransportStreamableHTTP {
		t.Errorf("server.transport: got %q", cfg.Server.Transport)
	}
	if cfg.Server.ListenAddr != "127.0.0.1:9090" {
		t.Errorf("server.listen_addr: got %q", cfg.Server.ListenAddr)
	}
	if cfg.Sapling.Binary != "/opt/sapling/bin/sl" {
		t.Errorf("sapling.binary: got %q", cfg.Sapling.Binary)
	}
	if cfg.Sapling.Timeout != 45*time.Second {
		t.Errorf("sapling.timeout: got %v, want 45s", cfg.Sapling.Timeout)
	}
	if cfg.Telemetry.ServiceName != "sapling-dev" || !cfg.Telemetry.Metrics {
		t.Errorf("telemetry: got %+v", cfg.Telemetry)
	}
}

func TestLoadFromReader_EmptyAppliesDefaults(t *testing.T) {
	t.Parallel()
	for _, doc := range []string{"", "{}", "# only a comment\n"} {
		cfg, err := config.LoadFromReader(strings.NewReader(doc))
		if err != nil {
			t.Fatalf("LoadFromReader(%q): unexpected error: %v", doc, err)
		}
		if cfg.Server.LogLevel != config.LogInfo {
			t.Errorf("log_level default: got %q", cfg.Server.LogLevel)
		}
		if cfg.Server.Transport != mcp.TransportStdio {
			t.Errorf("transport default: got %q", cfg.Server.Transport)
		}
		if cfg.Server.ListenAddr != "" {
			t.Errorf("listen_addr should stay empty for stdio, got %q", cfg.Server.ListenAddr)
		}
		if cfg.Sapling.Binary != "sl" {
			t.Errorf("binary default: got %q", cfg.Sapling.Binary)
		}
		if cfg.Sapling.Timeout != 30*time.Second {
			t.Errorf("timeout default: got %v", cfg.Sapling.Timeout)
		}
		if cfg.Telemetry.ServiceName != "mcp-sapling" {
			t.Errorf("service_name default: got %q", cfg.Telemetry.ServiceName)
		}
	}
}

func TestLoadFromReader_HTTPDefaultsListenAddr(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader("server:\n  transport: streamable-http\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != config.DefaultListenAddr {
		t.Errorf("listen_addr: got %q, want %q", cfg.Server.ListenAddr, config.DefaultListenAddr)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	yaml := `
sapling:
  binary: sl
  pager: less
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
	if !strings.Contains(err.Error(), "pager") {
		t.Errorf("error should mention the unknown field, got: %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Sapling.Timeout != 45*time.Second {
		t.Errorf("sapling.timeout: got %v", cfg.Sapling.Timeout)
	}
}

// ── Validation ────────────────────────────────────────────────────────────────

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantSub string
	}{
		{"invalid log level", "server:\n  log_level: verbose\n", "log_level"},
		{"invalid transport", "server:\n  transport: websocket\n", "server.transport"},
		{"negative timeout", "sapling:\n  timeout: -5s\n", "sapling.timeout"},
		{"blank binary", "sapling:\n  binary: \"  \"\n", "sapling.binary"},
		{"malformed timeout", "sapling:\n  timeout: soon\n", "decode yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error should mention %q, got: %v", tt.wantSub, err)
			}
		})
	}
}

func TestValidate_HTTPRequiresListenAddr(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server:  config.ServerConfig{Transport: mcp.TransportStreamableHTTP},
		Sapling: config.SaplingConfig{Binary: "sl"},
	}
	err := config.Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "listen_addr") {
		t.Errorf("expected listen_addr error, got %v", err)
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
  transport: carrier-pigeon
sapling:
  timeout: -1s
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	for _, want := range []string{"log_level", "server.transport", "sapling.timeout"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error should mention %q, got: %v", want, err)
		}
	}
}

// ── LogLevel ─────────────────────────────────────────────────────────────────

func TestLogLevel_Level(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   config.LogLevel
		want slog.Level
	}{
		{config.LogDebug, slog.LevelDebug},
		{config.LogInfo, slog.LevelInfo},
		{config.LogWarn, slog.LevelWarn},
		{config.LogError, slog.LevelError},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := tt.in.Level(); got != tt.want {
			t.Errorf("LogLevel(%q).Level() = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDefault(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}
	if cfg.Sapling.Binary != config.DefaultBinary || cfg.Sapling.Timeout != config.DefaultTimeout {
		t.Errorf("Default() = %+v", cfg.Sapling)
	}
}
