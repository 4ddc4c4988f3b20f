package supabase

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingURL indicates the project URL is not configured.
	ErrMissingURL = errors.New("supabase: project URL is required")

	// ErrMissingKey indicates the anon key is not configured.
	ErrMissingKey = errors.New("supabase: anon key is required")

	// ErrInvalidSession indicates the access token could not be parsed or
	// failed verification.
	ErrInvalidSession = errors.New("supabase: invalid session token")
)

// APIError is a non-2xx answer from a Supabase endpoint.
type APIError struct {
	// Path is the request path, without the project URL.
	Path string

	// StatusCode is the HTTP status.
	StatusCode int

	// Message is the server's error message, or the raw body.
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("supabase %s responded %d", e.Path, e.StatusCode)
	}
	return fmt.Sprintf("supabase %s responded %d: %s", e.Path, e.StatusCode, e.Message)
}
