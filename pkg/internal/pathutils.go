package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath resolves p to an absolute, cleaned path.
//
// Behavior:
//   - A leading "~" or "~/" is replaced with the user's home directory.
//   - A relative path is joined onto base. When base is empty the current
//     working directory is used.
//   - An absolute path is only cleaned.
func ExpandPath(base, p string) (string, error) {
	if p == "~" || strings.HasPrefix(p, "~/") || strings.HasPrefix(p, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home for %q: %w", p, err)
		}
		p = filepath.Join(home, p[1:])
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p), nil
	}
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		base = wd
	}
	abs, err := filepath.Abs(filepath.Join(base, p))
	if err != nil {
		return "", err
	}
	return abs, nil
}

// IsHidden reports whether any element of the slash or OS separated path
// rel starts with a dot.
func IsHidden(rel string) bool {
	for part := range strings.SplitSeq(filepath.ToSlash(rel), "/") {
		if len(part) > 1 && strings.HasPrefix(part, ".") && part != ".." {
			return true
		}
	}
	return false
}

// Within reports whether target is dir itself or lies below it. Both paths
// should be absolute.
func Within(dir, target string) bool {
	rel, err := filepath.Rel(dir, target)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
