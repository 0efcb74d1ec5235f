package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for the mcp-sapling tracer.
const tracerName = "github.com/MrWong99/mcp-sapling"

// Span attribute keys used for tool call spans.
const (
	AttrTool     = attribute.Key("mcpsapling.tool")
	AttrRepoPath = attribute.Key("mcpsapling.repo_path")
	AttrOutcome  = attribute.Key("mcpsapling.outcome")
	AttrExitCode = attribute.Key("process.exit.code")
)

// Tracer returns the package-level [trace.Tracer]. It uses the globally
// registered [trace.TracerProvider].
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a new span and returns the updated context and span. The
// caller must call span.End() when done.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// EndOutcome annotates span with the call outcome and marks it as an error
// unless the outcome is "success". It does not end the span.
func EndOutcome(span trace.Span, outcome string, attrs ...attribute.KeyValue) {
	span.SetAttributes(AttrOutcome.String(outcome))
	span.SetAttributes(attrs...)
	if outcome != "success" {
		span.SetStatus(codes.Error, outcome)
	}
}

// CorrelationID extracts the trace ID from the OTel span context in ctx.
// Returns the empty string when no active span with a valid trace ID exists.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns an [slog.Logger] enriched with trace_id and span_id from
// the OTel span context in ctx. When no active span is present, the returned
// logger is the default slog logger without extra attributes.
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return l
}
