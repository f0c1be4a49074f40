// Package errors provides a lightweight structured error type (BuildError)
// for category-based classification of typesetting pipeline failures.
package errors

import (
	"fmt"
)

// ErrorCategory represents the category of a texbuilder error for classification
type ErrorCategory string

const (
	// User-facing configuration and input errors
	CategoryConfig ErrorCategory = "config"
	CategoryFormat ErrorCategory = "format"

	// Toolchain and workspace errors
	CategoryProcessing ErrorCategory = "processing"
	CategoryIO         ErrorCategory = "io"

	// Runtime and infrastructure errors
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates how critical an error is
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution
	SeverityError   ErrorSeverity = "error"   // Error, but not fatal
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
)

// BuildError is a structured error with category, severity and optional
// diagnostic text extracted from the toolchain's own log output.
type BuildError struct {
	Category   ErrorCategory `json:"category"`
	Severity   ErrorSeverity `json:"severity"`
	Message    string        `json:"message"`
	Cause      error         `json:"cause,omitempty"`
	LogExcerpt string        `json:"log_excerpt,omitempty"`
}

// Error implements the error interface
func (e *BuildError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	if e.LogExcerpt != "" {
		return fmt.Sprintf("%s (%s): %s\n%s", e.Category, e.Severity, msg, e.LogExcerpt)
	}
	return fmt.Sprintf("%s (%s): %s", e.Category, e.Severity, msg)
}

// Unwrap implements error unwrapping for Go 1.13+ error handling
func (e *BuildError) Unwrap() error {
	return e.Cause
}

// WithLogExcerpt attaches diagnostic text extracted from a tool's log file.
func (e *BuildError) WithLogExcerpt(text string) *BuildError {
	e.LogExcerpt = text
	return e
}

// New creates a new BuildError
func New(category ErrorCategory, severity ErrorSeverity, message string) *BuildError {
	return &BuildError{
		Category: category,
		Severity: severity,
		Message:  message,
	}
}

// Wrap creates a new BuildError that wraps an existing error
func Wrap(err error, category ErrorCategory, severity ErrorSeverity, message string) *BuildError {
	return &BuildError{
		Category: category,
		Severity: severity,
		Message:  message,
		Cause:    err,
	}
}

// IsCategory checks if an error belongs to a specific category
func IsCategory(err error, category ErrorCategory) bool {
	if be, ok := err.(*BuildError); ok {
		return be.Category == category
	}
	return false
}

// GetCategory extracts the category from an error, or returns CategoryInternal if not a BuildError
func GetCategory(err error) ErrorCategory {
	if be, ok := err.(*BuildError); ok {
		return be.Category
	}
	return CategoryInternal
}

// ConfigError creates a fatal configuration error (missing tool path, bad option)
func ConfigError(message string) *BuildError {
	return New(CategoryConfig, SeverityFatal, message)
}

// FormatError creates a fatal output-format resolution error
func FormatError(message string) *BuildError {
	return New(CategoryFormat, SeverityFatal, message)
}

// ProcessingError creates a fatal toolchain error carrying extracted log text
func ProcessingError(message, logExcerpt string) *BuildError {
	return New(CategoryProcessing, SeverityFatal, message).WithLogExcerpt(logExcerpt)
}

// IOError wraps a workspace read/write failure
func IOError(err error, message string) *BuildError {
	return Wrap(err, CategoryIO, SeverityFatal, message)
}
