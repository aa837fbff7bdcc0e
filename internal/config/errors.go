package config

import (
	"errors"
	"fmt"
)

// ConfigurationError reports a missing or invalid setting discovered at startup.
type ConfigurationError struct {
	// Field is the YAML path of the offending setting.
	Field string
	// Err describes the problem.
	Err error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %s: %v", e.Field, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errRequired is the cause for empty mandatory settings.
	errRequired = errors.New("value is required")
	// errNotPositive is the cause for non-positive durations or counts.
	errNotPositive = errors.New("value must be positive")
	// errUnknownBackend is the cause for an unsupported audio backend.
	errUnknownBackend = errors.New("unknown audio backend")
	// errIntervalOrder is the cause for a max interval below the initial one.
	errIntervalOrder = errors.New("max interval must not be less than initial interval")
)

func invalid(field string, err error) *ConfigurationError {
	return &ConfigurationError{Field: field, Err: err}
}
