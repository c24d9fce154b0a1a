package post

import (
	"errors"
	"fmt"
)

// Sentinel errors used for simple equality-style checks.
var (
	// ErrInvalid marks a document that lacks a required field.
	ErrInvalid = errors.New("invalid document")

	// ErrParse marks a document whose field values could not be parsed.
	ErrParse = errors.New("unable to parse")
)

// ValidationError reports a source document that lacks a required header
// field. It unwraps to ErrInvalid.
type ValidationError struct {
	Source string
	Field  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: missing required field %q", e.Source, e.Field)
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

// DateParseError reports a date value that does not match the configured
// date format. It matches ErrParse and unwraps to the underlying time error.
type DateParseError struct {
	Source string
	Value  string
	Format string
	Cause  error
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("%s: date %q does not match format %q: %v",
		e.Source, e.Value, e.Format, e.Cause)
}

func (e *DateParseError) Is(target error) bool { return target == ErrParse }

func (e *DateParseError) Unwrap() error { return e.Cause }

// IsValidation reports whether err is (or wraps) a missing-field condition.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalid)
}

// IsParse reports whether err is (or wraps) a field parse failure.
func IsParse(err error) bool {
	return errors.Is(err, ErrParse)
}
