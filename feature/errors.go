package feature

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyDataset is returned when a generator is fitted against an empty init set.
	ErrEmptyDataset = errors.New("empty init dataset")

	// ErrUnknownKind is returned when a registry has no factory for a kind.
	ErrUnknownKind = errors.New("unknown kind")

	// ErrUnknownParameter is returned for a parameter name a component does not define.
	ErrUnknownParameter = errors.New("unknown parameter")

	// ErrInvalidValue is returned for a parameter value that does not parse or is out of range.
	ErrInvalidValue = errors.New("invalid parameter value")

	// ErrFrozen is returned when parameters of a fitted generator are changed.
	ErrFrozen = errors.New("parameters frozen after fit")

	// ErrNotFitted is returned when a fitted generator is required.
	ErrNotFitted = errors.New("generator not fitted")

	// ErrSourceUnavailable is returned when a referenced generator cannot be resolved.
	ErrSourceUnavailable = errors.New("source generator unavailable")
)

// ConfigurationError reports a malformed or unknown parameter or reference.
// It is fatal at construction time.
//
// The underlying sentinel (if any) can be accessed via errors.Unwrap.
type ConfigurationError struct {
	Component string
	Parameter string
	Value     string
	cause     error
}

// NewConfigurationError creates a configuration error for component wrapping cause.
func NewConfigurationError(component, parameter, value string, cause error) *ConfigurationError {
	return &ConfigurationError{Component: component, Parameter: parameter, Value: value, cause: cause}
}

func (e *ConfigurationError) Error() string {
	msg := "configuration error: " + e.Component
	if e.Parameter != "" {
		msg += fmt.Sprintf(": parameter %s=%q", e.Parameter, e.Value)
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.cause }

// FitError reports a failure to fit a generator: a missing collaborator
// resource or an empty init set. It aborts the whole composition.
type FitError struct {
	Generator string
	cause     error
}

// NewFitError creates a fit error for the named generator.
func NewFitError(generator string, cause error) *FitError {
	return &FitError{Generator: generator, cause: cause}
}

func (e *FitError) Error() string {
	return fmt.Sprintf("fit %s: %v", e.Generator, e.cause)
}

func (e *FitError) Unwrap() error { return e.cause }
