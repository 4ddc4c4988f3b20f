package health

import (
	"context"
	"fmt"
)

// Report kinds passed to Observer.ObserveReport.
const (
	KindBasic    = "basic"
	KindDetailed = "detailed"
)

// Connector obtains the dependency handles for one detailed report.
type Connector interface {
	Connect(ctx context.Context) (*Deps, error)
}

// ConnectorFunc is an adapter to allow ordinary functions to be used as
// Connectors.
type ConnectorFunc func(ctx context.Context) (*Deps, error)

// Connect calls f(ctx).
func (f ConnectorFunc) Connect(ctx context.Context) (*Deps, error) {
	return f(ctx)
}

// StaticConnector returns a Connector that always yields deps.
func StaticConnector(deps *Deps) Connector {
	return ConnectorFunc(func(context.Context) (*Deps, error) {
		return deps, nil
	})
}

// Service is the entry point used by transports: a liveness report and a
// detailed report built from freshly connected dependencies.
type Service struct {
	agg       *Aggregator
	connector Connector
}

// NewService creates a Service. A nil connector yields empty Deps.
func NewService(agg *Aggregator, connector Connector) *Service {
	if connector == nil {
		connector = StaticConnector(&Deps{})
	}
	return &Service{agg: agg, connector: connector}
}

// Aggregator returns the underlying aggregator.
func (s *Service) Aggregator() *Aggregator {
	return s.agg
}

// Basic returns the liveness report. It performs no probing.
func (s *Service) Basic(ctx context.Context) Report {
	report := s.agg.Basic()
	s.observe(ctx, KindBasic, report)
	return report
}

// Detailed connects the dependencies and runs every probe. The returned
// error is non-nil only when the connector fails; it wraps ErrConnect.
// Probe failures are reported inside the Report.
func (s *Service) Detailed(ctx context.Context) (Report, error) {
	deps, err := s.connector.Connect(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("%w: %w", ErrConnect, err)
	}

	report := s.agg.Detailed(ctx, deps)
	s.observe(ctx, KindDetailed, report)
	return report, nil
}

func (s *Service) observe(ctx context.Context, kind string, report Report) {
	if obs := s.agg.config.Observer; obs != nil {
		obs.ObserveReport(ctx, kind, report.Status.String())
	}
}
