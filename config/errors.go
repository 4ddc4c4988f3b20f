package config

import "errors"

var (
	// ErrInvalidConfig is wrapped by every Validate failure.
	ErrInvalidConfig = errors.New("config: invalid configuration")

	// ErrReadConfig indicates the configuration file could not be read or
	// parsed.
	ErrReadConfig = errors.New("config: cannot read configuration")
)
