package health

import (
	"context"
	"time"
)

// Report keys of the built-in probes.
const (
	ProbeDatabase    = "database"
	ProbeAuth        = "supabase"
	ProbeEnvironment = "environment"
	ProbeCache       = "cache"
)

const (
	// DefaultDatabaseVersion is reported when the store answers without
	// an identifier.
	DefaultDatabaseVersion = "PostgreSQL Connected"

	// EnvironmentOKMessage is reported when every required key is set.
	EnvironmentOKMessage = "All required environment variables are set"
)

// DefaultRequiredEnv is the configuration the service cannot run without.
var DefaultRequiredEnv = []string{
	"SUPABASE_URL",
	"SUPABASE_ANON_KEY",
	"SUPABASE_SERVICE_ROLE_KEY",
}

// DatabaseProbe confirms the backing store is reachable and reports its
// version.
type DatabaseProbe struct{}

// Name returns "database".
func (DatabaseProbe) Name() string {
	return ProbeDatabase
}

// Probe issues one Version call against deps.Store.
func (DatabaseProbe) Probe(ctx context.Context, deps *Deps) ProbeResult {
	if deps == nil || deps.Store == nil {
		return Failure(ErrNoStore)
	}

	start := time.Now()
	version, err := deps.Store.Version(ctx)
	elapsed := time.Since(start)
	if err != nil {
		return Failure(err)
	}

	if version == "" {
		version = DefaultDatabaseVersion
	}
	return OK().
		WithResponseTime(Millis(elapsed)).
		WithTimestamp(time.Now()).
		WithVersion(version)
}

// AuthProbe confirms the auth subsystem answers. An empty session is a
// healthy answer.
type AuthProbe struct{}

// Name returns "supabase".
func (AuthProbe) Name() string {
	return ProbeAuth
}

// Probe issues one Session call against deps.Auth. The response time is
// reported in its string form.
func (AuthProbe) Probe(ctx context.Context, deps *Deps) ProbeResult {
	if deps == nil || deps.Auth == nil {
		return Failure(ErrNoAuth)
	}

	start := time.Now()
	_, err := deps.Auth.Session(ctx)
	elapsed := time.Since(start)
	if err != nil {
		return Failure(err)
	}

	return OK().WithResponseTime(MillisString(elapsed))
}

// EnvironmentProbe checks that required configuration keys are set.
// It performs no I/O and never returns Error; absent keys are listed in
// Missing.
type EnvironmentProbe struct {
	Required []string
}

// NewEnvironmentProbe creates an environment probe. With no keys it checks
// DefaultRequiredEnv.
func NewEnvironmentProbe(required ...string) *EnvironmentProbe {
	if len(required) == 0 {
		required = DefaultRequiredEnv
	}
	keys := make([]string, len(required))
	copy(keys, required)
	return &EnvironmentProbe{Required: keys}
}

// Name returns "environment".
func (p *EnvironmentProbe) Name() string {
	return ProbeEnvironment
}

// Probe compares p.Required against deps.Config. A key with an empty value
// counts as missing.
func (p *EnvironmentProbe) Probe(_ context.Context, deps *Deps) ProbeResult {
	var cfg Lookuper
	if deps != nil {
		cfg = deps.Config
	}

	var missing []string
	for _, key := range p.Required {
		if cfg == nil {
			missing = append(missing, key)
			continue
		}
		if v, ok := cfg.Lookup(key); !ok || v == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return MissingKeys(missing)
	}
	return OK().WithMessage(EnvironmentOKMessage)
}

// CacheProbe pings the cache handle.
type CacheProbe struct{}

// Name returns "cache".
func (CacheProbe) Name() string {
	return ProbeCache
}

// Probe issues one Ping against deps.Cache.
func (CacheProbe) Probe(ctx context.Context, deps *Deps) ProbeResult {
	if deps == nil || deps.Cache == nil {
		return Failure(ErrNoCache)
	}

	start := time.Now()
	err := deps.Cache.Ping(ctx)
	elapsed := time.Since(start)
	if err != nil {
		return Failure(err)
	}

	return OK().
		WithResponseTime(Millis(elapsed)).
		WithTimestamp(time.Now())
}

// DefaultProbes returns the database, auth and environment probes, in that
// order. required overrides DefaultRequiredEnv when non-empty.
func DefaultProbes(required ...string) []Probe {
	return []Probe{
		DatabaseProbe{},
		AuthProbe{},
		NewEnvironmentProbe(required...),
	}
}
