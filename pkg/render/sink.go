package render

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio"

	"github.com/jlrickert/letterpress/pkg/config"
	"github.com/jlrickert/letterpress/pkg/internal"
	"github.com/jlrickert/letterpress/pkg/log"
	"github.com/jlrickert/letterpress/pkg/site"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// FileSink writes rendered pages below the configured site directory.
// Every file is replaced atomically so a web server never serves a
// partially written page.
type FileSink struct {
	renderer     *Renderer
	publishedDir string
	siteDir      string
}

// NewFileSink returns a sink rendering with r. publishedDir is the source
// directory; Clean never touches it.
func NewFileSink(r *Renderer, publishedDir string) *FileSink {
	return &FileSink{renderer: r, publishedDir: publishedDir}
}

// SiteDir returns the output directory of the current configuration.
func (s *FileSink) SiteDir() string { return s.siteDir }

// Reset switches to cfg and ensures its site directory exists.
func (s *FileSink) Reset(ctx context.Context, cfg *config.Config) error {
	s.renderer.Configure(cfg)
	if err := os.MkdirAll(cfg.SiteDir, dirPerm); err != nil {
		return &OutputError{Op: "mkdir", Source: config.FileName, Dest: cfg.SiteDir, Err: err}
	}
	if s.siteDir != cfg.SiteDir {
		log.FromContext(ctx).Debug("site directory set", "site_dir", cfg.SiteDir)
	}
	s.siteDir = cfg.SiteDir
	return nil
}

func (s *FileSink) dest(p site.Page) string {
	return filepath.Join(s.siteDir, filepath.FromSlash(p.OutputPath()))
}

func pageSource(p site.Page) string {
	if pp, ok := p.(*site.PostPage); ok {
		return pp.Post.Source
	}
	return p.Kind().String()
}

// Render writes p. A missing template is returned unwrapped so the engine
// can abort the pass.
func (s *FileSink) Render(ctx context.Context, p site.Page) error {
	if s.siteDir == "" {
		return ErrNotConfigured
	}
	data, err := s.renderer.Render(p)
	if err != nil {
		if errors.Is(err, ErrTemplateMissing) {
			return err
		}
		return &OutputError{Op: "render", Source: pageSource(p), Dest: p.OutputPath(), Err: err}
	}
	dest := s.dest(p)
	if err := os.MkdirAll(filepath.Dir(dest), dirPerm); err != nil {
		return &OutputError{Op: "mkdir", Source: pageSource(p), Dest: dest, Err: err}
	}
	if err := renameio.WriteFile(dest, data, filePerm); err != nil {
		return &OutputError{Op: "write", Source: pageSource(p), Dest: dest, Err: err}
	}
	log.FromContext(ctx).Debug("page written", "kind", p.Kind().String(), "output", p.OutputPath())
	return nil
}

// Remove deletes the output of p and prunes directories left empty. A tag
// page takes its whole directory with it.
func (s *FileSink) Remove(ctx context.Context, p site.Page) error {
	if s.siteDir == "" {
		return ErrNotConfigured
	}
	dest := s.dest(p)
	var err error
	if tp, ok := p.(*site.TagPage); ok {
		dest = filepath.Join(s.siteDir, filepath.FromSlash(site.TagDir(tp.Tag.Key)))
		tags := filepath.Join(s.siteDir, "tags")
		if dest == tags || !internal.Within(tags, dest) {
			return &OutputError{Op: "remove", Source: pageSource(p), Dest: dest, Err: ErrOutsideTags}
		}
		err = os.RemoveAll(dest)
	} else {
		err = os.Remove(dest)
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &OutputError{Op: "remove", Source: pageSource(p), Dest: dest, Err: err}
	}
	s.prune(filepath.Dir(dest))
	log.FromContext(ctx).Debug("page removed", "kind", p.Kind().String(), "output", p.OutputPath())
	return nil
}

// prune removes empty directories from dir up to, not including, the site
// directory.
func (s *FileSink) prune(dir string) {
	for dir != s.siteDir && internal.Within(s.siteDir, dir) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// Clean empties the site directory before an initial build. It refuses to
// run when the site directory holds the published directory, and keeps
// the publish lock.
func (s *FileSink) Clean(ctx context.Context) error {
	if s.siteDir == "" {
		return ErrNotConfigured
	}
	lg := log.FromContext(ctx)
	if s.publishedDir != "" && internal.Within(s.siteDir, s.publishedDir) {
		lg.Warn("site directory contains sources, not cleaning", "site_dir", s.siteDir)
		return nil
	}
	entries, err := os.ReadDir(s.siteDir)
	if err != nil {
		return fmt.Errorf("clean %s: %w", s.siteDir, err)
	}
	for _, e := range entries {
		if e.Name() == config.LockFileName {
			continue
		}
		path := filepath.Join(s.siteDir, e.Name())
		if err := os.RemoveAll(path); err != nil {
			lg.Error("clean failed", "path", path, "err", err)
		}
	}
	lg.Debug("site directory cleaned", "site_dir", s.siteDir, "entries", len(entries))
	return nil
}

var (
	_ site.Sink    = (*FileSink)(nil)
	_ site.Cleaner = (*FileSink)(nil)
)
