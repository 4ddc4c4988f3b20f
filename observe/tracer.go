package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// ProbeMeta identifies a probe for telemetry purposes.
type ProbeMeta struct {
	Name    string // Report key of the probe (required)
	Service string // Reporting service (optional)
}

// SpanName returns the deterministic span name for this probe.
// Format: health.probe.<name>
func (m ProbeMeta) SpanName() string {
	return "health.probe." + m.Name
}

// Tracer wraps OpenTelemetry tracing with probe span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for one probe execution.
	StartSpan(ctx context.Context, meta ProbeMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new span with probe metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta ProbeMeta) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("probe.name", meta.Name),
		attribute.Bool("probe.error", false),
	}
	if meta.Service != "" {
		attrs = append(attrs, attribute.String("service.name", meta.Service))
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("probe.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

// NewNoopTracer creates a no-op tracer.
func NewNoopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta ProbeMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, err error) {
	span.End()
}
