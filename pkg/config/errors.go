package config

import (
	"errors"
	"fmt"
	"os"
)

var (
	ErrInvalid  = os.ErrInvalid
	ErrNotExist = os.ErrNotExist
)

// InvalidConfigError represents a validation or parse failure in a
// letterpress config file.
type InvalidConfigError struct {
	Path string
	Line int
	Msg  string
}

func (e *InvalidConfigError) Error() string {
	switch {
	case e.Path != "" && e.Line > 0:
		return fmt.Sprintf("invalid config %s:%d: %s", e.Path, e.Line, e.Msg)
	case e.Path != "":
		return fmt.Sprintf("invalid config %s: %s", e.Path, e.Msg)
	default:
		return fmt.Sprintf("invalid config: %s", e.Msg)
	}
}

func (e *InvalidConfigError) Is(target error) bool {
	return target == ErrInvalid
}

func (e *InvalidConfigError) Unwrap() error { return ErrInvalid }

// IsInvalidConfig reports whether err is (or wraps) an invalid-config condition.
func IsInvalidConfig(err error) bool {
	return errors.Is(err, ErrInvalid)
}
