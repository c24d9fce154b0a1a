// Package publish binds the engine to a published directory on disk: it
// reads post documents, mirrors resources into the site directory and
// turns filesystem notifications into engine events.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jlrickert/letterpress/pkg/config"
	"github.com/jlrickert/letterpress/pkg/internal"
	"github.com/jlrickert/letterpress/pkg/log"
	"github.com/jlrickert/letterpress/pkg/site"
)

// ErrNotDir is returned when the published directory is not a directory.
var ErrNotDir = errors.New("not a directory")

// Role classifies an entry of the published directory.
type Role int

const (
	RoleIgnored Role = iota
	RolePost
	RoleConfig
	RoleTemplate
	RoleResource
)

func (r Role) String() string {
	switch r {
	case RolePost:
		return "post"
	case RoleConfig:
		return "config"
	case RoleTemplate:
		return "template"
	case RoleResource:
		return "resource"
	default:
		return "ignored"
	}
}

// Workspace is the published directory: config file, templates, post
// documents at the top level and everything else as resources.
type Workspace struct {
	dir string
}

// NewWorkspace resolves dir and checks that it is a directory.
func NewWorkspace(dir string) (*Workspace, error) {
	abs, err := internal.ExpandPath("", dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("published directory %s: %w", abs, ErrNotDir)
	}
	if err != nil {
		return nil, fmt.Errorf("published directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("published directory %s: %w", abs, ErrNotDir)
	}
	return &Workspace{dir: abs}, nil
}

// Dir returns the absolute published directory.
func (w *Workspace) Dir() string { return w.dir }

// TemplatesDir returns the templates directory.
func (w *Workspace) TemplatesDir() string { return filepath.Join(w.dir, config.TemplatesDir) }

// LogPath returns the log file kept in the published directory.
func (w *Workspace) LogPath() string { return filepath.Join(w.dir, config.LogFileName) }

// Rel returns path relative to the published directory, slash separated.
func (w *Workspace) Rel(path string) (string, error) {
	if !filepath.IsAbs(path) {
		return filepath.ToSlash(filepath.Clean(path)), nil
	}
	rel, err := filepath.Rel(w.dir, path)
	if err != nil {
		return "", err
	}
	if !internal.Within(w.dir, path) {
		return "", fmt.Errorf("%s is outside %s", path, w.dir)
	}
	return filepath.ToSlash(rel), nil
}

// Abs returns the absolute path of a slash separated relative path.
func (w *Workspace) Abs(rel string) string {
	return filepath.Join(w.dir, filepath.FromSlash(rel))
}

// LoadConfig reads letterpress.config.
func (w *Workspace) LoadConfig(_ context.Context) (*config.Config, error) {
	return config.Load(w.dir)
}

// Classify reports the role of rel, a slash separated path relative to the
// published directory. Only top-level files with the markdown extension are
// posts; everything below a resource directory is a resource.
func (w *Workspace) Classify(cfg *config.Config, rel string, isDir bool) Role {
	rel = strings.TrimPrefix(filepath.ToSlash(rel), "./")
	if rel == "" || rel == "." || internal.IsHidden(rel) {
		return RoleIgnored
	}
	top, _, nested := strings.Cut(rel, "/")
	switch {
	case top == config.TemplatesDir:
		return RoleTemplate
	case strings.HasPrefix(top, config.LogFileName), top == config.LockFileName:
		return RoleIgnored
	}
	if cfg != nil && cfg.SiteDir != w.dir && internal.Within(cfg.SiteDir, w.Abs(rel)) {
		return RoleIgnored
	}
	if nested {
		return RoleResource
	}
	switch {
	case isDir:
		return RoleResource
	case rel == config.FileName:
		return RoleConfig
	case cfg != nil && filepath.Ext(rel) == cfg.MarkdownExt:
		return RolePost
	}
	return RoleResource
}

// Documents reads every post document. Unreadable files are logged and
// skipped. Documents are returned in file name order.
func (w *Workspace) Documents(ctx context.Context, cfg *config.Config) ([]site.Document, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", w.dir, err)
	}
	lg := log.FromContext(ctx)
	var docs []site.Document
	for _, e := range entries {
		if e.IsDir() || w.Classify(cfg, e.Name(), false) != RolePost {
			continue
		}
		raw, err := os.ReadFile(w.Abs(e.Name()))
		if err != nil {
			lg.Error("read post failed", "path", e.Name(), "err", err)
			continue
		}
		docs = append(docs, site.Document{Path: e.Name(), Raw: raw})
	}
	slices.SortFunc(docs, func(a, b site.Document) int { return strings.Compare(a.Path, b.Path) })
	return docs, nil
}

// Resources lists the top-level resource entries.
func (w *Workspace) Resources(cfg *config.Config) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", w.dir, err)
	}
	return slices.DeleteFunc(entries, func(e os.DirEntry) bool {
		return w.Classify(cfg, e.Name(), e.IsDir()) != RoleResource
	}), nil
}

var _ site.Source = (*Workspace)(nil)
