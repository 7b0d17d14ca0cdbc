package monitor

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoInterfacesFound is returned when no interface survives the filter.
var ErrNoInterfacesFound = errors.New("no network interfaces found")

// Stable numeric error codes, for callers that can only carry an integer.
const (
	CodeOK                      = 0
	CodeUnknown                 = 1000
	CodeSourceUnavailable       = 1001
	CodeInsufficientTimeElapsed = 1004
	CodeNoInterfacesFound       = 1005
	CodeInvalidConfiguration    = 1008
)

// InsufficientTimeElapsedError is returned when a sample is requested before
// the configured minimum interval has passed since the stored baseline.
type InsufficientTimeElapsedError struct {
	Min    time.Duration
	Actual time.Duration
}

func (e *InsufficientTimeElapsedError) Error() string {
	return fmt.Sprintf("insufficient time elapsed for accurate measurement (minimum: %dms, actual: %dms)",
		e.MinMs(), e.ActualMs())
}

// MinMs returns the required interval in milliseconds.
func (e *InsufficientTimeElapsedError) MinMs() uint64 {
	return uint64(e.Min.Milliseconds())
}

// ActualMs returns the observed interval in milliseconds.
func (e *InsufficientTimeElapsedError) ActualMs() uint64 {
	if e.Actual < 0 {
		return 0
	}
	return uint64(e.Actual.Milliseconds())
}

// SourceUnavailableError wraps a failure of the interface source.
type SourceUnavailableError struct {
	Err error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("interface source unavailable: %v", e.Err)
}

func (e *SourceUnavailableError) Unwrap() error {
	return e.Err
}

// InvalidConfigurationError is returned by Build and Validate.
type InvalidConfigurationError struct {
	Field  string
	Reason string
}

func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}

func invalid(field, reason string) error {
	return &InvalidConfigurationError{Field: field, Reason: reason}
}

// IsRetryable reports whether repeating the same call later can succeed
// without any change in configuration or environment.
func IsRetryable(err error) bool {
	var tooSoon *InsufficientTimeElapsedError
	return errors.As(err, &tooSoon)
}

// Code maps an error to its stable numeric code.
func Code(err error) int {
	var (
		tooSoon *InsufficientTimeElapsedError
		src     *SourceUnavailableError
		cfg     *InvalidConfigurationError
	)
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrNoInterfacesFound):
		return CodeNoInterfacesFound
	case errors.As(err, &tooSoon):
		return CodeInsufficientTimeElapsed
	case errors.As(err, &src):
		return CodeSourceUnavailable
	case errors.As(err, &cfg):
		return CodeInvalidConfiguration
	default:
		return CodeUnknown
	}
}
