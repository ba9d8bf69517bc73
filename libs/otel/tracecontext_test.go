package otelx

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestCarrierRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	carrier := Carrier(ctx)
	if carrier["traceparent"] == "" {
		t.Fatal("expected traceparent in carrier")
	}

	restored := trace.SpanContextFromContext(ContextFromCarrier(context.Background(), carrier))
	if restored.TraceID() != span.SpanContext().TraceID() {
		t.Fatalf("trace id mismatch: %s vs %s", restored.TraceID(), span.SpanContext().TraceID())
	}
}

func TestContextFromEmptyCarrier(t *testing.T) {
	ctx := context.Background()
	if got := ContextFromCarrier(ctx, nil); got != ctx {
		t.Fatal("expected context unchanged for empty carrier")
	}
}
