package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/mcp-sapling/internal/config"
	"github.com/MrWong99/mcp-sapling/internal/health"
	"github.com/MrWong99/mcp-sapling/internal/mcp/server"
	"github.com/MrWong99/mcp-sapling/internal/observe"
)

// shutdownGrace bounds how long in-flight HTTP requests may run after a
// shutdown signal. It covers one full process timeout.
const shutdownGrace = 35 * time.Second

// newMux builds the HTTP routes: the MCP endpoint, health probes and,
// when enabled, the Prometheus scrape endpoint.
func newMux(cfg *config.Config, srv *server.Server, m *observe.Metrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/mcp", srv.HTTPHandler())

	health.New(
		health.BinaryChecker("sapling", cfg.Sapling.Binary),
	).Register(mux)

	if cfg.Telemetry.Metrics {
		mux.Handle("GET /metrics", promhttp.Handler())
	}
	return observe.Middleware(m)(mux)
}

// serveHTTP runs the streamable HTTP transport until ctx is cancelled and
// then shuts the listener down gracefully.
func serveHTTP(ctx context.Context, cfg *config.Config, srv *server.Server, m *observe.Metrics) error {
	httpSrv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           newMux(cfg, srv, m),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("serving MCP over streamable HTTP", "addr", httpSrv.Addr, "endpoint", "/mcp")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping HTTP listener")
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
		defer cancel()
		return httpSrv.Shutdown(sctx)
	})
	return g.Wait()
}
