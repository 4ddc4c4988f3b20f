package health

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/healthops/resilience"
)

// Defaults for the reporting service identity.
const (
	DefaultService = "cleaning-management-api"
	DefaultVersion = "1.0.0"
)

// Observer instruments probe executions and produced reports.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - ObserveProbe must call run exactly once and return its error.
type Observer interface {
	ObserveProbe(ctx context.Context, name string, run func(context.Context) error) error
	ObserveReport(ctx context.Context, kind string, status string)
}

// AggregatorConfig configures the health aggregator.
type AggregatorConfig struct {
	// Service is the static service identifier in every report.
	// Default: "cleaning-management-api"
	Service string

	// Version is the static version in every report.
	// Default: "1.0.0"
	Version string

	// Timeout is the maximum time to wait for all probes when they run
	// concurrently. Sequential runs are bounded by ProbeTimeout per probe.
	// Default: 10 seconds
	Timeout time.Duration

	// ProbeTimeout bounds each individual probe.
	// Default: 5 seconds
	ProbeTimeout time.Duration

	// Sequential runs probes one after another instead of concurrently.
	Sequential bool

	// Observer, when set, wraps every probe execution.
	Observer Observer

	// Now returns the current time. Default: time.Now
	Now func() time.Time
}

// Aggregator runs a fixed set of probes and rolls their results into a
// Report.
type Aggregator struct {
	config AggregatorConfig
	mu     sync.RWMutex
	probes map[string]Probe
	order  []string // Maintains registration order
}

// NewAggregator creates a new health aggregator with the given probes.
func NewAggregator(config AggregatorConfig, probes ...Probe) *Aggregator {
	if config.Service == "" {
		config.Service = DefaultService
	}
	if config.Version == "" {
		config.Version = DefaultVersion
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = 5 * time.Second
	}
	if config.ProbeTimeout > config.Timeout {
		config.ProbeTimeout = config.Timeout
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	a := &Aggregator{
		config: config,
		probes: make(map[string]Probe),
		order:  make([]string, 0, len(probes)),
	}
	for _, p := range probes {
		a.Register(p)
	}
	return a
}

// Config returns the effective configuration.
func (a *Aggregator) Config() AggregatorConfig {
	return a.config
}

// Register adds a probe. A probe with the same name replaces the earlier
// one and keeps its position.
func (a *Aggregator) Register(p Probe) {
	if p == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	name := p.Name()
	if _, exists := a.probes[name]; !exists {
		a.order = append(a.order, name)
	}
	a.probes[name] = p
}

// Unregister removes a probe by name.
func (a *Aggregator) Unregister(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.probes, name)

	for i, n := range a.order {
		if n == name {
			a.order = append(a.order[:i], a.order[i+1:]...)
			break
		}
	}
}

// ProbeNames returns the names of all registered probes in registration
// order. These are exactly the keys of a detailed report's Checks.
func (a *Aggregator) ProbeNames() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	names := make([]string, len(a.order))
	copy(names, a.order)
	return names
}

// Basic returns a liveness-only report: always StatusOK, no Checks.
func (a *Aggregator) Basic() Report {
	return Report{
		Status:    StatusOK,
		Timestamp: a.config.Now(),
		Service:   a.config.Service,
		Version:   a.config.Version,
	}
}

// Detailed runs every registered probe against deps and returns the
// rolled-up report. It never fails: a probe's failure, timeout or panic is
// recorded in that probe's result and the other probes still run.
func (a *Aggregator) Detailed(ctx context.Context, deps *Deps) Report {
	if deps == nil {
		deps = &Deps{}
	}

	a.mu.RLock()
	probes := make([]Probe, 0, len(a.order))
	for _, name := range a.order {
		probes = append(probes, a.probes[name])
	}
	a.mu.RUnlock()

	results := make([]ProbeResult, len(probes))
	if a.config.Sequential {
		// Each probe gets its full ProbeTimeout however long earlier probes took.
		for i, p := range probes {
			results[i] = a.runProbe(ctx, p, deps)
		}
	} else {
		ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()

		var g errgroup.Group
		for i, p := range probes {
			g.Go(func() error {
				results[i] = a.runProbe(ctx, p, deps)
				return nil
			})
		}
		_ = g.Wait()
	}

	checks := make(map[string]ProbeResult, len(probes))
	order := make([]string, 0, len(probes))
	for i, p := range probes {
		checks[p.Name()] = results[i]
		order = append(order, p.Name())
	}

	return Report{
		Status:    RollUp(checks),
		Timestamp: a.config.Now(),
		Service:   a.config.Service,
		Version:   a.config.Version,
		Checks:    checks,
		order:     order,
	}
}

// Check runs a single named probe.
func (a *Aggregator) Check(ctx context.Context, name string, deps *Deps) (ProbeResult, error) {
	a.mu.RLock()
	p, ok := a.probes[name]
	a.mu.RUnlock()

	if !ok {
		return ProbeResult{}, ErrProbeNotFound
	}
	if deps == nil {
		deps = &Deps{}
	}
	return a.runProbe(ctx, p, deps), nil
}

func (a *Aggregator) runProbe(ctx context.Context, p Probe, deps *Deps) ProbeResult {
	exec := func(ctx context.Context) ProbeResult {
		result, err := resilience.Run(ctx, a.config.ProbeTimeout, func(ctx context.Context) (ProbeResult, error) {
			return p.Probe(ctx, deps), nil
		})
		if err != nil {
			return boundFailure(err)
		}
		return result
	}

	if a.config.Observer == nil {
		return exec(ctx)
	}

	result := Failure(ErrProbeFailed)
	_ = a.config.Observer.ObserveProbe(ctx, p.Name(), func(ctx context.Context) error {
		result = exec(ctx)
		return result.Err()
	})
	return result
}

// boundFailure converts an error from the per-probe bound into a result.
func boundFailure(err error) ProbeResult {
	var timeoutErr *resilience.TimeoutError
	var panicErr *resilience.PanicError
	switch {
	case errors.As(err, &timeoutErr), errors.As(err, &panicErr):
		return ProbeResult{Status: StatusError, Error: "probe " + err.Error()}
	default:
		return Failure(err)
	}
}
