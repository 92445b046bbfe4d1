package tracing_test

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/trace"

	"github.com/notifyhub/event-notifier/internal/tracing"
)

const traceparent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"

func TestInjectExtractRoundTrip(t *testing.T) {
	tracing.Setup()

	ctx := tracing.Extract(context.Background(), map[string]string{"traceparent": traceparent})
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() || sc.TraceID().String() != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Fatalf("expected remote span context, got %+v", sc)
	}

	headers := tracing.Inject(ctx)
	if headers["traceparent"] != traceparent {
		t.Fatalf("expected traceparent to be re-injected, got %v", headers)
	}

	fields := tracing.Fields(ctx)
	if len(fields) != 2 || fields[0].String != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Fatalf("unexpected log fields %+v", fields)
	}
}

func TestEmptyContext(t *testing.T) {
	tracing.Setup()

	if h := tracing.Inject(context.Background()); h != nil {
		t.Fatalf("expected no headers, got %v", h)
	}
	if f := tracing.Fields(context.Background()); f != nil {
		t.Fatalf("expected no fields, got %v", f)
	}
	ctx := context.Background()
	if tracing.Extract(ctx, nil) != ctx {
		t.Fatal("expected ctx unchanged without headers")
	}
}
