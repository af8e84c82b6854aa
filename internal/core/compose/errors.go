// Package compose contains pure functions for parsing and validating
// stack topology files (Compose syntax). This is part of the Functional
// Core - all functions are pure with no I/O.
package compose

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Input validation errors
	ErrEmptyInput = errors.New("topology is empty")

	// YAML parsing errors
	ErrInvalidYAML = errors.New("invalid YAML syntax")

	// Topology structure errors
	ErrNoServices = errors.New("topology must define at least one service")

	// Service validation errors
	ErrServiceNoImage     = errors.New("service must have image or build")
	ErrServiceInvalidPort = errors.New("invalid port configuration")
	ErrInvalidRestart     = errors.New("invalid restart policy")
	ErrCircularDependency = errors.New("circular dependency detected")

	// Dependency edge errors
	ErrUnknownDependency   = errors.New("depends_on references unknown service")
	ErrSelfDependency      = errors.New("service cannot depend on itself")
	ErrInvalidCondition    = errors.New("invalid depends_on condition")
	ErrUngatableDependency = errors.New("service_healthy condition requires the dependency to declare a healthcheck")

	// Port conflicts
	ErrDuplicateHostPort = errors.New("host port published by more than one service")

	// Unsupported feature errors
	ErrUnsupportedFeature = errors.New("unsupported compose feature")
)

// ParseError wraps errors with context about where parsing failed.
type ParseError struct {
	Field   string // e.g., "services.web.ports[0]"
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError.
func NewParseError(field, message string, err error) *ParseError {
	return &ParseError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}
