package health

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestAggregator_Defaults(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{})
	cfg := agg.Config()

	if cfg.Service != DefaultService || cfg.Version != DefaultVersion {
		t.Errorf("identity = %q %q", cfg.Service, cfg.Version)
	}
	if cfg.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", cfg.Timeout)
	}
	if cfg.ProbeTimeout != 5*time.Second {
		t.Errorf("ProbeTimeout = %v, want 5s", cfg.ProbeTimeout)
	}

	clamped := NewAggregator(AggregatorConfig{Timeout: time.Second, ProbeTimeout: time.Minute}).Config()
	if clamped.ProbeTimeout != time.Second {
		t.Errorf("ProbeTimeout = %v, want clamped to Timeout", clamped.ProbeTimeout)
	}
}

func TestAggregator_Basic(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var called atomic.Bool
	probe := NewProbeFunc("x", func(context.Context, *Deps) ProbeResult {
		called.Store(true)
		return Failure(errConnectionFailed)
	})
	agg := NewAggregator(AggregatorConfig{Now: func() time.Time { return now }}, probe)

	report := agg.Basic()
	if report.Status != StatusOK {
		t.Errorf("Status = %v, want ok", report.Status)
	}
	if report.Checks != nil {
		t.Errorf("Checks = %v, want nil", report.Checks)
	}
	if !report.Timestamp.Equal(now) {
		t.Errorf("Timestamp = %v", report.Timestamp)
	}
	if called.Load() {
		t.Error("Basic must not run probes")
	}
}

func TestAggregator_Detailed_AllHealthy(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{}, DefaultProbes()...)
	report := agg.Detailed(context.Background(), healthyDeps())

	if report.Status != StatusOK {
		t.Fatalf("Status = %v, want ok; checks %+v", report.Status, report.Checks)
	}
	if got := report.CheckNames(); !reflect.DeepEqual(got, []string{"database", "supabase", "environment"}) {
		t.Errorf("CheckNames() = %v", got)
	}
	for name, result := range report.Checks {
		if result.Status != StatusOK {
			t.Errorf("%s = %+v", name, result)
		}
	}
	if report.Checks[ProbeEnvironment].Message != EnvironmentOKMessage {
		t.Errorf("environment message = %q", report.Checks[ProbeEnvironment].Message)
	}
}

func TestAggregator_Detailed_FailureIsolated(t *testing.T) {
	deps := healthyDeps()
	deps.Store = &fakeStore{err: errConnectionFailed}

	agg := NewAggregator(AggregatorConfig{}, DefaultProbes()...)
	report := agg.Detailed(context.Background(), deps)

	if report.Status != StatusError {
		t.Fatalf("Status = %v, want error", report.Status)
	}
	db := report.Checks[ProbeDatabase]
	if db.Status != StatusError || db.Error != "Connection failed" {
		t.Errorf("database = %+v", db)
	}
	if report.Checks[ProbeAuth].Status != StatusOK {
		t.Errorf("supabase = %+v, want ok", report.Checks[ProbeAuth])
	}
	if report.Checks[ProbeEnvironment].Status != StatusOK {
		t.Errorf("environment = %+v, want ok", report.Checks[ProbeEnvironment])
	}
}

func TestAggregator_Detailed_MissingEnvironment(t *testing.T) {
	deps := healthyDeps()
	deps.Config = mapConfig{"SUPABASE_SERVICE_ROLE_KEY": "k"}

	agg := NewAggregator(AggregatorConfig{}, DefaultProbes()...)
	report := agg.Detailed(context.Background(), deps)

	if report.Status != StatusError {
		t.Fatalf("Status = %v, want error", report.Status)
	}
	env := report.Checks[ProbeEnvironment]
	if !reflect.DeepEqual(env.Missing, []string{"SUPABASE_URL", "SUPABASE_ANON_KEY"}) {
		t.Errorf("missing = %v", env.Missing)
	}
}

func TestAggregator_Detailed_NilDeps(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{}, DefaultProbes()...)
	report := agg.Detailed(context.Background(), nil)

	if report.Status != StatusError {
		t.Fatalf("Status = %v, want error", report.Status)
	}
	if got := report.Checks[ProbeDatabase].Error; got != ErrNoStore.Error() {
		t.Errorf("database error = %q", got)
	}
	if got := report.Checks[ProbeAuth].Error; got != ErrNoAuth.Error() {
		t.Errorf("supabase error = %q", got)
	}
	if got := report.Checks[ProbeEnvironment].Missing; !reflect.DeepEqual(got, DefaultRequiredEnv) {
		t.Errorf("environment missing = %v", got)
	}
}

func TestAggregator_Detailed_NoProbes(t *testing.T) {
	report := NewAggregator(AggregatorConfig{}).Detailed(context.Background(), nil)
	if report.Status != StatusOK {
		t.Errorf("Status = %v, want ok", report.Status)
	}
	if !report.Detailed() || len(report.Checks) != 0 {
		t.Errorf("Checks = %v, want empty non-nil map", report.Checks)
	}
}

func TestAggregator_Detailed_ProbeTimeout(t *testing.T) {
	deps := healthyDeps()
	deps.Store = &fakeStore{delay: time.Second}

	agg := NewAggregator(AggregatorConfig{ProbeTimeout: 30 * time.Millisecond}, DefaultProbes()...)

	start := time.Now()
	report := agg.Detailed(context.Background(), deps)
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Detailed took %v, want bounded by probe timeout", elapsed)
	}

	db := report.Checks[ProbeDatabase]
	if db.Status != StatusError {
		t.Fatalf("database = %+v, want error", db)
	}
	if db.Error != "probe timed out after 30ms" {
		t.Errorf("database error = %q", db.Error)
	}
	if report.Checks[ProbeAuth].Status != StatusOK {
		t.Error("slow database must not affect auth result")
	}
}

func TestAggregator_Detailed_PanicRecovered(t *testing.T) {
	boom := NewProbeFunc("boom", func(context.Context, *Deps) ProbeResult {
		panic("kaboom")
	})
	agg := NewAggregator(AggregatorConfig{}, boom, NewEnvironmentProbe("A"))

	report := agg.Detailed(context.Background(), &Deps{Config: mapConfig{"A": "1"}})

	if report.Status != StatusError {
		t.Fatalf("Status = %v, want error", report.Status)
	}
	if got := report.Checks["boom"].Error; !strings.Contains(got, "panicked") || !strings.Contains(got, "kaboom") {
		t.Errorf("boom error = %q", got)
	}
	if report.Checks[ProbeEnvironment].Status != StatusOK {
		t.Errorf("environment = %+v", report.Checks[ProbeEnvironment])
	}
}

func TestAggregator_Detailed_RunsConcurrently(t *testing.T) {
	const n = 4
	var wg sync.WaitGroup
	wg.Add(n)
	probes := make([]Probe, n)
	for i := range probes {
		probes[i] = NewProbeFunc(string(rune('a'+i)), func(ctx context.Context, _ *Deps) ProbeResult {
			wg.Done()
			done := make(chan struct{})
			go func() { wg.Wait(); close(done) }()
			select {
			case <-done:
				return OK()
			case <-ctx.Done():
				return Failure(ctx.Err())
			}
		})
	}

	agg := NewAggregator(AggregatorConfig{ProbeTimeout: time.Second}, probes...)
	report := agg.Detailed(context.Background(), nil)
	if report.Status != StatusOK {
		t.Errorf("probes did not overlap: %+v", report.Checks)
	}
}

func TestAggregator_Detailed_Sequential(t *testing.T) {
	var mu sync.Mutex
	var order []string
	record := func(name string) Probe {
		return NewProbeFunc(name, func(context.Context, *Deps) ProbeResult {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return OK()
		})
	}

	agg := NewAggregator(AggregatorConfig{Sequential: true}, record("one"), record("two"), record("three"))
	agg.Detailed(context.Background(), nil)

	if !reflect.DeepEqual(order, []string{"one", "two", "three"}) {
		t.Errorf("order = %v", order)
	}
}

func TestAggregator_RegisterReplaceKeepsPosition(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{}, DefaultProbes()...)
	agg.Register(NewProbeFunc(ProbeDatabase, func(context.Context, *Deps) ProbeResult {
		return OK().WithVersion("replaced")
	}))
	agg.Register(nil)

	if got := agg.ProbeNames(); !reflect.DeepEqual(got, []string{"database", "supabase", "environment"}) {
		t.Errorf("ProbeNames() = %v", got)
	}
	report := agg.Detailed(context.Background(), healthyDeps())
	if report.Checks[ProbeDatabase].Version != "replaced" {
		t.Errorf("database = %+v", report.Checks[ProbeDatabase])
	}

	agg.Unregister(ProbeAuth)
	if got := agg.ProbeNames(); !reflect.DeepEqual(got, []string{"database", "environment"}) {
		t.Errorf("ProbeNames() after Unregister = %v", got)
	}
}

func TestAggregator_Check(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{}, DefaultProbes()...)

	result, err := agg.Check(context.Background(), ProbeEnvironment, &Deps{Config: fullEnv()})
	if err != nil {
		t.Fatalf("Check() error = %v", err)
	}
	if result.Status != StatusOK {
		t.Errorf("result = %+v", result)
	}

	if _, err := agg.Check(context.Background(), "nope", nil); !errors.Is(err, ErrProbeNotFound) {
		t.Errorf("Check(nope) error = %v, want ErrProbeNotFound", err)
	}
}

func TestAggregator_TimestampAfterProbes(t *testing.T) {
	var probed atomic.Bool
	clock := func() time.Time {
		if probed.Load() {
			return time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC)
		}
		return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	probe := NewProbeFunc("p", func(context.Context, *Deps) ProbeResult {
		probed.Store(true)
		return OK()
	})

	report := NewAggregator(AggregatorConfig{Now: clock}, probe).Detailed(context.Background(), nil)
	if report.Timestamp.Second() != 1 {
		t.Errorf("Timestamp = %v, want taken after probes", report.Timestamp)
	}
}

type recordingObserver struct {
	mu      sync.Mutex
	probes  map[string]error
	reports []string
}

func (o *recordingObserver) ObserveProbe(ctx context.Context, name string, run func(context.Context) error) error {
	err := run(ctx)
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.probes == nil {
		o.probes = make(map[string]error)
	}
	o.probes[name] = err
	return err
}

func (o *recordingObserver) ObserveReport(_ context.Context, kind, status string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reports = append(o.reports, kind+":"+status)
}

func TestAggregator_Observer(t *testing.T) {
	obs := &recordingObserver{}
	deps := healthyDeps()
	deps.Store = &fakeStore{err: errConnectionFailed}

	agg := NewAggregator(AggregatorConfig{Observer: obs}, DefaultProbes()...)
	agg.Detailed(context.Background(), deps)

	if len(obs.probes) != 3 {
		t.Fatalf("observed %d probes, want 3", len(obs.probes))
	}
	if err := obs.probes[ProbeDatabase]; err == nil || err.Error() != "Connection failed" {
		t.Errorf("database observed error = %v", err)
	}
	if err := obs.probes[ProbeAuth]; err != nil {
		t.Errorf("supabase observed error = %v", err)
	}
}

func TestAggregator_Detailed_SequentialHungChecksDoNotStarveLater(t *testing.T) {
	hang := func(name string) Probe {
		return NewProbeFunc(name, func(ctx context.Context, _ *Deps) ProbeResult {
			<-ctx.Done()
			return Failure(ctx.Err())
		})
	}

	agg := NewAggregator(AggregatorConfig{
		Timeout:      80 * time.Millisecond,
		ProbeTimeout: 50 * time.Millisecond,
		Sequential:   true,
	}, hang("hung"), hang("hung2"), NewEnvironmentProbe("A"))

	report := agg.Detailed(context.Background(), &Deps{Config: mapConfig{}})

	for _, name := range []string{"hung", "hung2"} {
		if got := report.Checks[name].Error; got != "probe timed out after 50ms" {
			t.Errorf("%s error = %q", name, got)
		}
	}
	env := report.Checks[ProbeEnvironment]
	if env.Error != "" {
		t.Fatalf("environment error = %q, want missing list", env.Error)
	}
	if !reflect.DeepEqual(env.Missing, []string{"A"}) {
		t.Errorf("environment missing = %v, want [A]", env.Missing)
	}
}

type skippingObserver struct{}

func (skippingObserver) ObserveProbe(context.Context, string, func(context.Context) error) error {
	return nil
}

func (skippingObserver) ObserveReport(context.Context, string, string) {}

func TestAggregator_ObserverThatSkipsRunReportsFailure(t *testing.T) {
	agg := NewAggregator(AggregatorConfig{Observer: skippingObserver{}}, DefaultProbes()...)
	report := agg.Detailed(context.Background(), healthyDeps())

	if report.Status != StatusError {
		t.Errorf("Status = %v, want error", report.Status)
	}
	for name, r := range report.Checks {
		if r.Status != StatusError || r.Error != ErrProbeFailed.Error() {
			t.Errorf("%s = %+v, want %q", name, r, ErrProbeFailed)
		}
	}
}
