package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/xraph/press"

// Tracer starts the pipeline's OpenTelemetry spans. A nil *Tracer starts
// no-op spans.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer returns a Tracer on the global provider.
func NewTracer() *Tracer {
	return &Tracer{tracer: otel.Tracer(tracerName)}
}

func (t *Tracer) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if t == nil {
		return ctx, trace.SpanFromContext(context.Background())
	}
	return t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// StartDeliverySpan starts the span of one webhook attempt.
func (t *Tracer) StartDeliverySpan(ctx context.Context, deliveryID, entryID, url string, attempt int) (context.Context, trace.Span) {
	return t.start(ctx, "press.webhook.delivery",
		attribute.String("press.delivery_id", deliveryID),
		attribute.String("press.entry_id", entryID),
		attribute.String("url.full", url),
		attribute.Int("press.attempt", attempt),
	)
}

// EndDeliverySpan records the attempt result and ends the span.
func (t *Tracer) EndDeliverySpan(span trace.Span, statusCode, latencyMs int, errMsg string) {
	span.SetAttributes(
		attribute.Int("http.response.status_code", statusCode),
		attribute.Int("press.latency_ms", latencyMs),
	)
	if errMsg != "" {
		span.SetStatus(codes.Error, errMsg)
	}
	span.End()
}

// StartSweepSpan starts the span of one sweep run.
func (t *Tracer) StartSweepSpan(ctx context.Context, sweep string) (context.Context, trace.Span) {
	return t.start(ctx, "press.sweep", attribute.String("press.sweep", sweep))
}

// EndSweepSpan records the sweep counts and ends the span.
func (t *Tracer) EndSweepSpan(span trace.Span, transitioned, failed int) {
	span.SetAttributes(
		attribute.Int("press.transitioned", transitioned),
		attribute.Int("press.failed", failed),
	)
	span.End()
}
