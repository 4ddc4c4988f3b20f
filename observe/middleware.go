package observe

import (
	"context"
	"time"
)

// ExecuteFunc is the signature of one probe execution.
type ExecuteFunc func(ctx context.Context, probe ProbeMeta) error

// Middleware wraps probe executions with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe ExecuteFunc.
//   - Context: the wrapped function receives the span context.
//   - Errors: errors from the wrapped function are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
	service string
}

// NewMiddleware creates a new Middleware with the given observability components.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NewNoopTracer()
	}
	if metrics == nil {
		metrics = NewNoopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// WithService returns a copy of m that tags every probe with service.
func (m *Middleware) WithService(service string) *Middleware {
	cp := *m
	cp.service = service
	return &cp
}

// Wrap wraps an ExecuteFunc with tracing, metrics and logging.
// A failed probe is logged at warn: the report is degraded, the service is not.
func (m *Middleware) Wrap(fn ExecuteFunc) ExecuteFunc {
	return func(ctx context.Context, probe ProbeMeta) error {
		if probe.Service == "" {
			probe.Service = m.service
		}

		ctx, span := m.tracer.StartSpan(ctx, probe)
		start := time.Now()

		err := fn(ctx, probe)

		duration := time.Since(start)
		m.tracer.EndSpan(span, err)
		m.metrics.RecordProbe(ctx, probe, duration, err)

		probeLogger := m.logger.WithProbe(probe)
		fields := []Field{
			{Key: "duration_ms", Value: float64(duration.Milliseconds())},
		}
		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			probeLogger.Warn(ctx, "probe failed", fields...)
		} else {
			probeLogger.Debug(ctx, "probe completed", fields...)
		}

		return err
	}
}

// ObserveProbe runs run under Wrap for the probe called name.
func (m *Middleware) ObserveProbe(ctx context.Context, name string, run func(context.Context) error) error {
	return m.Wrap(func(ctx context.Context, _ ProbeMeta) error {
		return run(ctx)
	})(ctx, ProbeMeta{Name: name})
}

// ObserveReport records one produced report.
func (m *Middleware) ObserveReport(ctx context.Context, kind string, status string) {
	m.metrics.RecordReport(ctx, kind, status)
	m.logger.Debug(ctx, "health report produced",
		Field{Key: "report.kind", Value: kind},
		Field{Key: "report.status", Value: status},
	)
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
