// Package server exposes the Sapling tool registry as an MCP server.
//
// Every tool call follows the same path: decode the raw arguments, resolve
// them against the registry, execute the resulting command and format the
// outcome. Validation failures and process failures both come back to the
// client as tool results with IsError set. Calls naming a tool outside the
// registry are intercepted before the SDK dispatcher and answered the same
// way, so no tool call is reported as a protocol error.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/mcp-sapling/internal/mcp/tools"
	"github.com/MrWong99/mcp-sapling/internal/mcp/tools/sapling"
	"github.com/MrWong99/mcp-sapling/internal/observe"
	"github.com/MrWong99/mcp-sapling/internal/runner"
)

// outcomeRejected labels calls refused before execution.
const outcomeRejected = "rejected"

// unknownToolLabel replaces client-supplied names outside the registry in
// metric attributes.
const unknownToolLabel = "unknown"

// instructions is advertised to clients during initialisation.
const instructions = "Tools for the Sapling (sl) source control CLI. " +
	"Every tool takes repoPath, the absolute path of the repository; commands run with it as working directory."

// Executor runs one resolved command. [*runner.Executor] satisfies it.
type Executor interface {
	Execute(ctx context.Context, spec runner.CommandSpec) runner.Result
}

// Config holds the dependencies of a [Server].
type Config struct {
	// Name and Version identify the server to clients.
	Name    string
	Version string

	// Registry resolves tool calls. Required.
	Registry *sapling.Registry

	// Executor runs resolved commands. Required.
	Executor Executor

	// Metrics receives per-call counters and latencies. Optional.
	Metrics *observe.Metrics
}

// Server is an MCP server backed by a Sapling tool registry. It is safe for
// concurrent use: calls share nothing but the immutable registry.
type Server struct {
	reg     *sapling.Registry
	exec    Executor
	metrics *observe.Metrics
	mcp     *mcpsdk.Server
}

// New builds a Server and registers every tool in cfg.Registry.
func New(cfg Config) (*Server, error) {
	if cfg.Registry == nil {
		return nil, errors.New("server: registry is required")
	}
	if cfg.Executor == nil {
		return nil, errors.New("server: executor is required")
	}
	if cfg.Name == "" {
		cfg.Name = "mcp-sapling"
	}

	s := &Server{
		reg:     cfg.Registry,
		exec:    cfg.Executor,
		metrics: cfg.Metrics,
		mcp: mcpsdk.NewServer(
			&mcpsdk.Implementation{Name: cfg.Name, Version: cfg.Version},
			&mcpsdk.ServerOptions{Instructions: instructions},
		),
	}

	for _, def := range s.reg.Tools() {
		s.mcp.AddTool(&mcpsdk.Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		}, s.handler(def.Name))
	}
	s.mcp.AddReceivingMiddleware(s.unknownTools)
	return s, nil
}

// unknownTools answers tools/call requests for names outside the registry
// with an error result instead of the SDK's JSON-RPC error.
func (s *Server) unknownTools(next mcpsdk.MethodHandler) mcpsdk.MethodHandler {
	return func(ctx context.Context, method string, req mcpsdk.Request) (mcpsdk.Result, error) {
		if method != "tools/call" {
			return next(ctx, method, req)
		}
		call, ok := req.(*mcpsdk.CallToolRequest)
		if !ok || call.Params == nil {
			return next(ctx, method, req)
		}
		if _, known := s.reg.Lookup(call.Params.Name); known {
			return next(ctx, method, req)
		}
		return s.handler(call.Params.Name)(ctx, call)
	}
}

// MCP returns the underlying SDK server.
func (s *Server) MCP() *mcpsdk.Server { return s.mcp }

// Run serves a single session over t until the client disconnects or ctx is
// cancelled.
func (s *Server) Run(ctx context.Context, t mcpsdk.Transport) error {
	return s.mcp.Run(ctx, t)
}

// HTTPHandler returns a Streamable HTTP handler serving this server.
func (s *Server) HTTPHandler() http.Handler {
	return mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server {
		return s.mcp
	}, nil)
}

func (s *Server) handler(name string) mcpsdk.ToolHandler {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		var raw json.RawMessage
		if req != nil && req.Params != nil {
			raw = req.Params.Arguments
		}

		var resp sapling.Response
		args, err := decodeArguments(raw)
		if err != nil {
			resp = sapling.Reject(&tools.ValidationError{Tool: name, Err: err})
		} else {
			resp = s.Call(ctx, name, args)
		}

		return &mcpsdk.CallToolResult{
			Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: resp.Text}},
			IsError: resp.IsError,
		}, nil
	}
}

// Call runs one tool invocation end to end and returns the client-facing
// response. It never fails: every error becomes a response with IsError set.
func (s *Server) Call(ctx context.Context, name string, args map[string]any) sapling.Response {
	start := time.Now()
	callID := uuid.NewString()

	ctx, span := observe.StartSpan(ctx, "tool "+name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(observe.AttrTool.String(name)),
	)
	defer span.End()

	log := observe.Logger(ctx).With(
		slog.String("call_id", callID),
		slog.String("tool", name),
	)

	call, err := s.reg.Resolve(sapling.ToolID(name), args)
	if err != nil {
		log.Warn("tool call rejected", "err", err)
		observe.EndOutcome(span, outcomeRejected)
		metricTool := name
		if _, known := s.reg.Lookup(name); !known {
			metricTool = unknownToolLabel
		}
		s.record(ctx, metricTool, outcomeRejected, time.Since(start))
		return sapling.Reject(err)
	}
	span.SetAttributes(observe.AttrRepoPath.String(call.Params.RepoPath))

	log.Debug("executing tool", "repo_path", call.Params.RepoPath, "args", call.Spec.Args)
	res := s.exec.Execute(ctx, call.Spec)
	outcome := string(res.Outcome())
	elapsed := time.Since(start)

	switch r := res.(type) {
	case runner.Failure:
		observe.EndOutcome(span, outcome, observe.AttrExitCode.Int(r.ExitCode))
		log.Warn("tool command failed", "exit_code", r.ExitCode, "duration", elapsed)
	case runner.TimedOut:
		observe.EndOutcome(span, outcome)
		log.Warn("tool command timed out", "after", r.After, "duration", elapsed)
	case runner.SpawnError:
		observe.EndOutcome(span, outcome)
		log.Error("tool command could not start", "err", r.Message)
	default:
		observe.EndOutcome(span, outcome, observe.AttrExitCode.Int(0))
		log.Info("tool call completed", "duration", elapsed)
	}
	s.record(ctx, name, outcome, elapsed)

	return sapling.Format(call, res)
}

func (s *Server) record(ctx context.Context, tool, outcome string, d time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordToolCall(ctx, tool, outcome, d)
	}
}

// decodeArguments parses the raw argument object. Absent or null arguments
// decode to an empty map so the schema reports the missing fields.
func decodeArguments(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}
