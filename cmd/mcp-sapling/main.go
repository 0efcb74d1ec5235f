// Command mcp-sapling serves the Sapling (sl) source control CLI as a set of
// Model Context Protocol tools, over stdio or streamable HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/mcp-sapling/internal/config"
	"github.com/MrWong99/mcp-sapling/internal/mcp"
	"github.com/MrWong99/mcp-sapling/internal/mcp/server"
	"github.com/MrWong99/mcp-sapling/internal/mcp/tools/sapling"
	"github.com/MrWong99/mcp-sapling/internal/observe"
	"github.com/MrWong99/mcp-sapling/internal/runner"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "1.0.0"

const defaultConfigPath = "mcp-sapling.yaml"

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

// options holds the parsed command line.
type options struct {
	configPath     string
	configExplicit bool

	logLevel   string
	transport  string
	listenAddr string
	binary     string

	showVersion bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fsFlags := flag.NewFlagSet("mcp-sapling", flag.ContinueOnError)
	fsFlags.SetOutput(stderr)
	fsFlags.StringVar(&o.configPath, "config", defaultConfigPath, "path to the YAML configuration file")
	fsFlags.StringVar(&o.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fsFlags.StringVar(&o.transport, "transport", "", "MCP transport: stdio or streamable-http")
	fsFlags.StringVar(&o.listenAddr, "listen", "", "listen address for the streamable-http transport")
	fsFlags.StringVar(&o.binary, "sl", "", "Sapling binary name or path")
	fsFlags.BoolVar(&o.showVersion, "version", false, "print the version and exit")
	if err := fsFlags.Parse(args); err != nil {
		return o, err
	}
	fsFlags.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			o.configExplicit = true
		}
	})
	return o, nil
}

// loadConfig reads the config file, tolerating its absence unless the path
// was given explicitly, then applies flag overrides and re-validates.
// usedFile reports whether a file was actually loaded.
func loadConfig(o options) (cfg *config.Config, usedFile bool, err error) {
	cfg, err = config.Load(o.configPath)
	switch {
	case err == nil:
		usedFile = true
	case errors.Is(err, fs.ErrNotExist) && !o.configExplicit:
		cfg = config.Default()
	default:
		return nil, false, err
	}

	if o.logLevel != "" {
		cfg.Server.LogLevel = config.LogLevel(o.logLevel)
	}
	if o.transport != "" {
		cfg.Server.Transport = mcp.Transport(o.transport)
	}
	if o.listenAddr != "" {
		cfg.Server.ListenAddr = o.listenAddr
	}
	if o.binary != "" {
		cfg.Sapling.Binary = o.binary
	}
	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, false, err
	}
	return cfg, usedFile, nil
}

func run(args []string, stderr io.Writer) int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if opts.showVersion {
		fmt.Fprintln(stderr, "mcp-sapling", version)
		return 0
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, usedFile, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(stderr, "mcp-sapling: %v\n", err)
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// stdout carries the stdio transport, so logs always go to stderr.
	level := new(slog.LevelVar)
	level.Set(cfg.Server.LogLevel.Level())
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("mcp-sapling starting",
		"version", version,
		"config", configSource(opts.configPath, usedFile),
		"transport", cfg.Server.Transport,
		"sl", cfg.Sapling.Binary,
		"timeout", cfg.Sapling.Timeout,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	httpMode := cfg.Server.Transport == mcp.TransportStreamableHTTP
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		Prometheus:     httpMode && cfg.Telemetry.Metrics,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	metrics := observe.DefaultMetrics()

	// ── Config hot reload ─────────────────────────────────────────────────────
	if usedFile {
		w, err := config.NewWatcher(opts.configPath, func(_, _ *config.Config, d config.ConfigDiff) {
			if d.LogLevelChanged {
				level.Set(d.NewLogLevel.Level())
				slog.Info("log level changed", "log_level", d.NewLogLevel)
			}
			if len(d.RestartRequired) > 0 {
				slog.Warn("config changes take effect after restart", "fields", d.RestartRequired)
			}
		})
		if err != nil {
			slog.Warn("config hot reload disabled", "err", err)
		} else {
			defer w.Stop()
		}
	}

	// ── MCP server ────────────────────────────────────────────────────────────
	srv, err := server.New(server.Config{
		Name:     "mcp-sapling",
		Version:  version,
		Registry: sapling.New(cfg.Sapling.Binary),
		Executor: &runner.Executor{Timeout: cfg.Sapling.Timeout, Metrics: metrics},
		Metrics:  metrics,
	})
	if err != nil {
		slog.Error("failed to create MCP server", "err", err)
		return 1
	}

	if httpMode {
		err = serveHTTP(ctx, cfg, srv, metrics)
	} else {
		slog.Info("serving MCP over stdio")
		err = srv.Run(ctx, &mcpsdk.StdioTransport{})
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

func configSource(path string, usedFile bool) string {
	if usedFile {
		return path
	}
	return "(defaults)"
}
