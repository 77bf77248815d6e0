package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestDisabledTracingIsNoop(t *testing.T) {
	tp, err := NewTracerProvider(TracingConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewTracerProvider: %v", err)
	}
	defer tp.Shutdown(context.Background())

	_, span := tp.Tracer().Start(context.Background(), "test")
	if span.SpanContext().IsValid() {
		t.Error("disabled tracing must not record spans")
	}
	span.End()
}

func TestEnabledTracingExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	tp, err := NewTracerProvider(TracingConfig{Enabled: true, Writer: &buf})
	if err != nil {
		t.Fatalf("NewTracerProvider: %v", err)
	}

	ctx, span := tp.Tracer().Start(context.Background(), "generate_cycle")
	_ = trace.SpanFromContext(ctx)
	span.End()

	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if !strings.Contains(buf.String(), "generate_cycle") {
		t.Error("span not exported")
	}
}
