package render

import (
	"errors"
	"fmt"

	"github.com/jlrickert/letterpress/pkg/site"
)

var (
	// ErrTemplateMissing is returned when a required template cannot be
	// read. It is the engine's sentinel so a failed render aborts the pass.
	ErrTemplateMissing = site.ErrTemplateMissing

	// ErrNoSection is returned when a template lacks a section its page
	// kind needs, e.g. a tag archive without {{#posts}}.
	ErrNoSection = errors.New("template section missing")

	// ErrNotConfigured is returned by a sink used before Reset.
	ErrNotConfigured = errors.New("sink not configured")

	// ErrOutsideTags is returned when a tag directory would resolve outside
	// the site's tags/ directory.
	ErrOutsideTags = errors.New("tag directory outside tags/")
)

// TemplateError reports a template that could not be loaded or used.
type TemplateError struct {
	Name string
	Err  error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template %s: %v", e.Name, e.Err)
}

func (e *TemplateError) Unwrap() error { return e.Err }

// OutputError reports a failed write or removal of a generated file.
// Source names what was being rendered; Dest is the output path.
type OutputError struct {
	Op     string
	Source string
	Dest   string
	Err    error
}

func (e *OutputError) Error() string {
	return fmt.Sprintf("%s %s (from %s): %v", e.Op, e.Dest, e.Source, e.Err)
}

func (e *OutputError) Unwrap() error { return e.Err }

// IsOutput reports whether err is an *OutputError.
func IsOutput(err error) bool {
	var oe *OutputError
	return errors.As(err, &oe)
}
