// Package util provides the global logger, common error types, and small
// string helpers shared across nettally.
package util

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for transport, validation, and internal failures
var (
	ErrAuthFailed       = errors.New("authentication failed")
	ErrConnectTimeout   = errors.New("connection timed out")
	ErrConnectFailed    = errors.New("connection failed")
	ErrCommandFailed    = errors.New("command execution failed")
	ErrUnknownPlatform  = errors.New("unknown platform tag")
	ErrNotFound         = errors.New("resource not found")
	ErrAlreadyExists    = errors.New("resource already exists")
	ErrValidationFailed = errors.New("validation failed")
	ErrTaskNotFound     = errors.New("task not found")
	ErrTaskTerminal     = errors.New("task already in a terminal state")
	ErrCancelled        = errors.New("operation cancelled")
)

// ConnectError wraps a transport failure with device context.
type ConnectError struct {
	Host    string
	Attempt int
	Kind    error // one of ErrAuthFailed, ErrConnectTimeout, ErrConnectFailed
	Cause   error
}

func (e *ConnectError) Error() string {
	msg := fmt.Sprintf("%s: %v (attempt %d)", e.Host, e.Kind, e.Attempt)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ConnectError) Unwrap() error {
	return e.Kind
}

// NewConnectError creates a connect error for a device
func NewConnectError(host string, attempt int, kind, cause error) *ConnectError {
	return &ConnectError{Host: host, Attempt: attempt, Kind: kind, Cause: cause}
}

// CommandError reports a failed command on an open session.
type CommandError struct {
	Host    string
	Command string
	Cause   error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: command %q failed: %v", e.Host, e.Command, e.Cause)
}

func (e *CommandError) Unwrap() error {
	return ErrCommandFailed
}

// ValidationError represents one or more validation failures
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a validation error from messages
func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Errors: messages}
}

// ValidationBuilder helps accumulate validation errors
type ValidationBuilder struct {
	errors   []string
	warnings []string
}

// Add adds an error message if condition is false
func (v *ValidationBuilder) Add(condition bool, message string) *ValidationBuilder {
	if !condition {
		v.errors = append(v.errors, message)
	}
	return v
}

// AddError adds an error message unconditionally
func (v *ValidationBuilder) AddError(message string) *ValidationBuilder {
	v.errors = append(v.errors, message)
	return v
}

// AddErrorf adds a formatted error message
func (v *ValidationBuilder) AddErrorf(format string, args ...interface{}) *ValidationBuilder {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
	return v
}

// AddWarningf adds a formatted warning; warnings never fail Build
func (v *ValidationBuilder) AddWarningf(format string, args ...interface{}) *ValidationBuilder {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
	return v
}

// HasErrors returns true if there are validation errors
func (v *ValidationBuilder) HasErrors() bool {
	return len(v.errors) > 0
}

// Warnings returns accumulated warnings
func (v *ValidationBuilder) Warnings() []string {
	return v.warnings
}

// Build returns the validation error or nil if no errors
func (v *ValidationBuilder) Build() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errors}
}
