package resilience

import (
	"context"
	"errors"
	"time"
)

// TimeoutConfig configures the timeout wrapper.
type TimeoutConfig struct {
	// Timeout is the maximum duration for the operation.
	// Default: 5 seconds
	Timeout time.Duration
}

// Timeout bounds operations by a fixed duration.
type Timeout struct {
	config TimeoutConfig
}

// NewTimeout creates a new timeout wrapper.
func NewTimeout(config TimeoutConfig) *Timeout {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}

	return &Timeout{config: config}
}

// Execute runs op with the configured timeout.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	_, err := Run(ctx, t.config.Timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Config returns the timeout configuration.
func (t *Timeout) Config() TimeoutConfig {
	return t.config
}

// Run executes op in its own goroutine and waits at most timeout for it.
//
// When the bound is hit Run returns a *TimeoutError without waiting for op;
// op still observes the cancelled context and its result is discarded. When
// the parent context ends first, Run returns the parent's error. A panic in
// op is recovered and returned as a *PanicError.
func Run[T any](ctx context.Context, timeout time.Duration, op func(context.Context) (T, error)) (T, error) {
	var zero T

	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: &PanicError{Value: r}}
			}
		}()
		v, err := op(runCtx)
		done <- outcome{value: v, err: err}
	}()

	select {
	case out := <-done:
		return out.value, out.err
	case <-runCtx.Done():
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return zero, &TimeoutError{Timeout: timeout}
		}
		return zero, runCtx.Err()
	}
}
