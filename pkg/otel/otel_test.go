package otel

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestInit_StdoutExporterWritesSpans(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Init(context.Background(), Config{ServiceName: "iamlens-test", UseStdout: true, Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "iamlens.Simulate")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "iamlens.Simulate") {
		t.Fatalf("span not exported: %s", buf.String())
	}
}

func TestInit_NoExporter(t *testing.T) {
	shutdown, err := Init(t.Context(), Config{})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	_, span := otel.Tracer("test").Start(t.Context(), "noop")
	if !span.SpanContext().HasTraceID() {
		t.Fatal("expected a recorded span with trace id")
	}
	span.End()
}
