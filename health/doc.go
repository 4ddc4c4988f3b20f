// Package health aggregates dependency probes into a single health report.
//
// A Probe checks one dependency and always returns a ProbeResult; failures
// are values, not errors. The Aggregator runs a fixed set of probes,
// concurrently by default, bounds each with a per-probe timeout, and rolls
// the results up: the report is StatusError iff any probe errored.
//
// # Built-in probes
//
//	database     DatabaseProbe     one Version round trip, numeric responseTime
//	supabase     AuthProbe         one Session call, responseTime as "23ms"
//	environment  EnvironmentProbe  required keys present, else missing[]
//	cache        CacheProbe        optional Ping
//
// # Usage
//
//	agg := health.NewAggregator(health.AggregatorConfig{}, health.DefaultProbes()...)
//	svc := health.NewService(agg, health.StaticConnector(&health.Deps{
//	    Store:  store,
//	    Auth:   authClient,
//	    Config: secret.Environ(),
//	}))
//
//	report, err := svc.Detailed(ctx) // err only if the connector failed
//
// # HTTP
//
// NewHandler serves .../health (liveness, no checks) and .../health/detailed
// with CORS headers. A degraded report is still a 200; only a connector
// failure produces a 500.
package health
