package config

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownTrafficClass is wrapped when a class has no profile
	ErrUnknownTrafficClass = errors.New("unknown traffic class")
	// ErrInvalidParameter is wrapped when a value is out of range
	ErrInvalidParameter = errors.New("invalid parameter")
)

// ConfigurationError reports a parameter set that cannot be simulated.
// It is raised before any scenario executes.
type ConfigurationError struct {
	Field string
	Msg   string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %s", e.Msg)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Msg)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func invalid(field, format string, args ...any) error {
	return &ConfigurationError{
		Field: field,
		Msg:   fmt.Sprintf(format, args...),
		Err:   ErrInvalidParameter,
	}
}
