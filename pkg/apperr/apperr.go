// Package apperr defines the error taxonomy shared by every MacroMeter layer.
// This is a leaf package with no domain dependencies; callers wrap these sentinels
// with fmt.Errorf("...: %w", ...) and test them with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned when required settings (API keys, URLs) are missing.
	// Fatal at startup.
	ErrConfiguration = errors.New("configuration error")

	// ErrUpstream is returned when the vision or nutrition service cannot be reached
	// or answers with a non-2xx status. Callers may retry.
	ErrUpstream = errors.New("upstream service error")

	// ErrDecomposition is returned when the vision model output cannot be parsed.
	ErrDecomposition = errors.New("decomposition error")

	// ErrSchemaMismatch is returned when the vision model output parses but violates
	// the expected shape (e.g. parallel arrays of different length).
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrNotFound is returned when a nutrition lookup exhausted every query variant.
	// It is a valid outcome, not a failure: the aggregator skips the ingredient.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned for caller mistakes (non-positive weight, empty image).
	ErrInvalidInput = errors.New("invalid input")
)

// Upstream wraps err as an ErrUpstream for the named service.
func Upstream(service string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUpstream, service, err)
}

// Invalid returns an ErrInvalidInput carrying a formatted message.
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
