package cli

import (
	"errors"
	"log/slog"

	"github.com/jlrickert/letterpress/pkg/config"
	"github.com/jlrickert/letterpress/pkg/publish"
)

// renderUserError turns well known failures into a one line message. Debug
// logging keeps the full error chain.
func renderUserError(err error, deps *Deps) string {
	if err == nil {
		return ""
	}
	if deps != nil && deps.level() <= slog.LevelDebug {
		return err.Error()
	}

	switch {
	case errors.Is(err, publish.ErrLocked):
		return "site directory is in use by another letterpress process"
	case errors.Is(err, publish.ErrNotDir):
		return "published directory does not exist or is not a directory"
	case errors.Is(err, config.ErrNotExist):
		return "no " + config.FileName + " found in the published directory"
	}
	return err.Error()
}
