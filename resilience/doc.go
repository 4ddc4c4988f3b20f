// Package resilience bounds the execution time of dependency calls.
//
// Run wraps a single call with a deadline and converts both an exceeded
// deadline and a panic into ordinary errors, so a hung or misbehaving
// dependency can never block or crash its caller:
//
//	version, err := resilience.Run(ctx, 5*time.Second, func(ctx context.Context) (string, error) {
//	    return store.Version(ctx)
//	})
//	if errors.Is(err, resilience.ErrTimeout) {
//	    // the store did not answer in time
//	}
//
// There are no retries, circuit breakers or rate limiters here: a
// health probe must report the dependency as it is right now.
package resilience
