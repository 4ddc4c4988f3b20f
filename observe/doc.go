// Package observe provides telemetry for health probes: a JSON structured
// logger, OpenTelemetry tracing and metrics, and a Middleware that applies
// all three to a single probe execution.
//
// Middleware satisfies health.Observer, so it can be handed straight to
// health.AggregatorConfig.Observer.
package observe
