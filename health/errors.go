package health

import "errors"

var (
	// ErrConnect indicates the dependency handles for a detailed report
	// could not be obtained. It is the only error Service.Detailed returns.
	ErrConnect = errors.New("health: cannot obtain dependency handles")

	// ErrNoStore indicates Deps carries no database handle.
	ErrNoStore = errors.New("health: database handle not configured")

	// ErrNoAuth indicates Deps carries no auth handle.
	ErrNoAuth = errors.New("health: auth handle not configured")

	// ErrNoCache indicates Deps carries no cache handle.
	ErrNoCache = errors.New("health: cache handle not configured")

	// ErrProbeFailed is used when a failed result carries no message.
	ErrProbeFailed = errors.New("health: probe failed")
)

// ErrProbeNotFound indicates no probe is registered under a name.
var ErrProbeNotFound = errors.New("health: probe not found")
