package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric instrument names.
const (
	MetricProbeTotal    = "health.probe.total"
	MetricProbeErrors   = "health.probe.errors"
	MetricProbeDuration = "health.probe.duration_ms"
	MetricReportTotal   = "health.report.total"
)

// Metrics records probe and report metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordProbe records one probe execution with duration and error status.
	RecordProbe(ctx context.Context, meta ProbeMeta, duration time.Duration, err error)

	// RecordReport records one produced report.
	RecordReport(ctx context.Context, kind, status string)
}

type metricsImpl struct {
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
	reportCount  metric.Int64Counter
}

// NewMetrics creates Metrics backed by the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	totalCount, err := meter.Int64Counter(
		MetricProbeTotal,
		metric.WithDescription("Total number of probe executions"),
		metric.WithUnit("{probe}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		MetricProbeErrors,
		metric.WithDescription("Total number of failed probe executions"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		MetricProbeDuration,
		metric.WithDescription("Probe execution duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	reportCount, err := meter.Int64Counter(
		MetricReportTotal,
		metric.WithDescription("Total number of health reports produced"),
		metric.WithUnit("{report}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		totalCount:   totalCount,
		errorCount:   errorCount,
		durationHist: durationHist,
		reportCount:  reportCount,
	}, nil
}

func (m *metricsImpl) RecordProbe(ctx context.Context, meta ProbeMeta, duration time.Duration, err error) {
	opt := metric.WithAttributes(attribute.String("probe.name", meta.Name))

	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordReport(ctx context.Context, kind, status string) {
	m.reportCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("report.kind", kind),
		attribute.String("report.status", status),
	))
}

type noopMetrics struct{}

// NewNoopMetrics returns Metrics that record nothing.
func NewNoopMetrics() Metrics {
	return noopMetrics{}
}

func (noopMetrics) RecordProbe(context.Context, ProbeMeta, time.Duration, error) {}
func (noopMetrics) RecordReport(context.Context, string, string)                 {}
