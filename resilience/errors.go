package resilience

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout is returned when an operation does not finish within its bound.
	ErrTimeout = errors.New("resilience: operation timed out")

	// ErrPanic is returned when an operation panics.
	ErrPanic = errors.New("resilience: operation panicked")
)

// TimeoutError reports which bound was exceeded.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out after %s", e.Timeout)
}

// Is reports whether target is ErrTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// PanicError carries the recovered value of a panicking operation.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panicked: %v", e.Value)
}

// Is reports whether target is ErrPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrPanic
}
