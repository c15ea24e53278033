// Package errors defines the pipeline error taxonomy. Configuration and
// source-load failures abort a run; per-column computation failures are
// handled locally by the aggregator and never surface here.
package errors

import (
	"errors"
	"fmt"
)

// PipelineError is a structured error carrying a stable code for the CLI
// boundary and a human-readable message.
type PipelineError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As.
func (e *PipelineError) Unwrap() error { return e.Err }

// Is matches pipeline errors by code so sentinel comparisons keep working
// after a cause or context has been attached.
func (e *PipelineError) Is(target error) bool {
	var pe *PipelineError
	if errors.As(target, &pe) {
		return e.Code == pe.Code
	}
	return false
}

// New creates a new pipeline error with the given code and message.
func New(code, message string) *PipelineError {
	return &PipelineError{Code: code, Message: message}
}

// Wrap attaches a cause to a copy of a sentinel error.
func Wrap(sentinel *PipelineError, err error) *PipelineError {
	return &PipelineError{Code: sentinel.Code, Message: sentinel.Message, Err: err}
}

// Wrapf returns a copy of a sentinel error with a more specific message.
func Wrapf(sentinel *PipelineError, format string, args ...interface{}) *PipelineError {
	return &PipelineError{Code: sentinel.Code, Message: fmt.Sprintf(format, args...)}
}

// Predefined errors for the aggregation pipeline.
var (
	// Configuration errors: fail fast, non-zero exit.
	ErrInvalidConfig     = New("INVALID_CONFIG", "invalid configuration")
	ErrUnknownSourceType = New("UNKNOWN_SOURCE_TYPE", "unknown source type")
	ErrNoSources         = New("NO_SOURCES", "no sources registered")

	// Source load errors: abort the run.
	ErrSourceLoad          = New("SOURCE_LOAD_FAILED", "failed to load source")
	ErrIdentityResolution  = New("IDENTITY_RESOLUTION_FAILED", "cannot resolve student identity")
	ErrUnsupportedFileType = New("UNSUPPORTED_FILE_TYPE", "unsupported file type")

	// Export errors.
	ErrExportFailed = New("EXPORT_FAILED", "failed to write export file")

	// Fetch errors.
	ErrFetchFailed  = New("FETCH_FAILED", "failed to fetch export")
	ErrFetchTimeout = New("FETCH_TIMEOUT", "fetch timed out")
)
