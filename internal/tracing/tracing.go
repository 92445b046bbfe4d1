// Package tracing carries W3C trace context from the HTTP request that
// created an event, through the message headers, into the consumer.
//
// Only the OpenTelemetry API is used. Without an SDK tracer provider, spans
// are non-recording but remote span contexts still propagate, so trace IDs
// supplied by an upstream caller show up in both processes' logs.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Setup installs the W3C trace-context and baggage propagators globally.
// Call once from main before serving.
func Setup() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// Inject returns the trace headers for ctx, or nil when there is nothing to carry.
func Inject(ctx context.Context) map[string]string {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	if len(carrier) == 0 {
		return nil
	}
	return carrier
}

// Extract returns ctx with any remote span context found in headers.
func Extract(ctx context.Context, headers map[string]string) context.Context {
	if len(headers) == 0 {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(headers))
}

// Fields returns trace_id and span_id log fields, or nil when ctx carries no
// valid span context.
func Fields(ctx context.Context) []zap.Field {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}
