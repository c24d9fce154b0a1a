package site

import "errors"

var (
	// ErrBusy is returned by Apply while a full rebuild is in progress.
	ErrBusy = errors.New("engine busy rebuilding")

	// ErrShutdown is returned once the engine stopped accepting events.
	ErrShutdown = errors.New("engine shut down")

	// ErrTemplateMissing marks a required page template that could not be
	// loaded. Sinks wrap it; the engine aborts the current render pass.
	ErrTemplateMissing = errors.New("required template missing")

	// ErrUnknownEvent is returned for an event kind the engine does not
	// handle.
	ErrUnknownEvent = errors.New("unknown event")
)

// IsTemplateMissing reports whether err is (or wraps) a missing required
// template.
func IsTemplateMissing(err error) bool {
	return errors.Is(err, ErrTemplateMissing)
}
