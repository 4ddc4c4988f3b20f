package health

import (
	"context"
	"time"
)

// VersionSource is a backing store that can report its version in one
// round trip.
type VersionSource interface {
	Version(ctx context.Context) (string, error)
}

// Session is the auth subsystem's view of the current session.
type Session struct {
	UserID    string
	Role      string
	ExpiresAt time.Time
}

// SessionSource retrieves the current auth session. A nil session with a
// nil error means the subsystem answered and no session is active.
type SessionSource interface {
	Session(ctx context.Context) (*Session, error)
}

// Lookuper reads named configuration values.
type Lookuper interface {
	Lookup(key string) (string, bool)
}

// Pinger is a dependency that can be pinged.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps is the set of dependency handles a detailed report needs.
// Nil handles are reported as errors by the probes that need them.
type Deps struct {
	Store  VersionSource
	Auth   SessionSource
	Config Lookuper
	Cache  Pinger
}

// Probe checks one dependency or precondition.
//
// Contract:
//   - Probe must not panic and must report every failure as a StatusError
//     result; the aggregator still recovers panics and converts them.
//   - Probe must honor ctx cancellation where its dependency supports it.
//   - Probes are independent: no probe may rely on another's outcome.
type Probe interface {
	// Name returns the report key of this probe.
	Name() string

	// Probe runs the check against deps.
	Probe(ctx context.Context, deps *Deps) ProbeResult
}

// ProbeFunc is an adapter to allow ordinary functions to be used as Probes.
type ProbeFunc struct {
	name string
	fn   func(context.Context, *Deps) ProbeResult
}

// NewProbeFunc creates a new ProbeFunc.
func NewProbeFunc(name string, fn func(context.Context, *Deps) ProbeResult) *ProbeFunc {
	return &ProbeFunc{name: name, fn: fn}
}

// Name returns the name of this probe.
func (f *ProbeFunc) Name() string {
	return f.name
}

// Probe runs the wrapped function.
func (f *ProbeFunc) Probe(ctx context.Context, deps *Deps) ProbeResult {
	return f.fn(ctx, deps)
}
