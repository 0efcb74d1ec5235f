package observe

import (
	"bytes"
	"context"
	"log/slog"
	"regexp"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var traceIDPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

func newTestTracerProvider(t *testing.T) (*sdktrace.TracerProvider, *tracetest.InMemoryExporter) {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return tp, exp
}

// captureLogs redirects the default slog logger into a buffer for the
// duration of the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return &buf
}

func TestCorrelationID(t *testing.T) {
	tp, _ := newTestTracerProvider(t)

	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID(background) = %q, want empty", got)
	}

	ctx, span := tp.Tracer("test").Start(context.Background(), "tool sapling_status")
	defer span.End()
	if cid := CorrelationID(ctx); !traceIDPattern.MatchString(cid) {
		t.Errorf("CorrelationID = %q, want 32 hex chars", cid)
	}
}

func TestStartSpan_UsesGlobalProvider(t *testing.T) {
	tp, exp := newTestTracerProvider(t)
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(orig) })

	_, span := StartSpan(context.Background(), "tool sapling_log")
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Name != "tool sapling_log" {
		t.Fatalf("spans = %v, want one named %q", spans, "tool sapling_log")
	}
}

func TestEndOutcome(t *testing.T) {
	tests := []struct {
		outcome    string
		wantStatus codes.Code
	}{
		{"success", codes.Unset},
		{"failure", codes.Error},
		{"timed_out", codes.Error},
		{"spawn_error", codes.Error},
		{"rejected", codes.Error},
	}
	for _, tt := range tests {
		t.Run(tt.outcome, func(t *testing.T) {
			tp, exp := newTestTracerProvider(t)
			_, span := tp.Tracer("test").Start(context.Background(), "call")
			EndOutcome(span, tt.outcome, AttrTool.String("sapling_pull"), AttrExitCode.Int(3))
			span.End()

			got := exp.GetSpans()[0]
			if got.Status.Code != tt.wantStatus {
				t.Errorf("status = %v, want %v", got.Status.Code, tt.wantStatus)
			}
			attrs := map[string]string{}
			for _, kv := range got.Attributes {
				attrs[string(kv.Key)] = kv.Value.Emit()
			}
			if attrs[string(AttrOutcome)] != tt.outcome {
				t.Errorf("outcome attribute = %q", attrs[string(AttrOutcome)])
			}
			if attrs[string(AttrTool)] != "sapling_pull" || attrs[string(AttrExitCode)] != "3" {
				t.Errorf("attributes = %v", attrs)
			}
		})
	}
}

func TestLogger(t *testing.T) {
	tp, _ := newTestTracerProvider(t)
	buf := captureLogs(t)

	Logger(context.Background()).Info("no span")
	ctx, span := tp.Tracer("test").Start(context.Background(), "call")
	Logger(ctx).Info("in span")
	span.End()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d log lines, want 2:\n%s", len(lines), buf.String())
	}
	if strings.Contains(lines[0], "trace_id") {
		t.Errorf("line without span carries trace_id: %s", lines[0])
	}
	want := "trace_id=" + CorrelationID(ctx)
	if !strings.Contains(lines[1], want) || !strings.Contains(lines[1], "span_id=") {
		t.Errorf("line %q missing %q or span_id", lines[1], want)
	}
}
