package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio"

	"github.com/jlrickert/letterpress/pkg/config"
	"github.com/jlrickert/letterpress/pkg/internal"
	"github.com/jlrickert/letterpress/pkg/log"
	"github.com/jlrickert/letterpress/pkg/site"
)

// Mirror copies resources of a workspace into the site directory. It does
// nothing when the site directory is the published directory.
type Mirror struct {
	ws *Workspace
}

// NewMirror returns a mirror for ws.
func NewMirror(ws *Workspace) *Mirror {
	return &Mirror{ws: ws}
}

func (m *Mirror) disabled(cfg *config.Config) bool {
	return cfg == nil || cfg.SiteDir == m.ws.Dir()
}

// SyncResources copies every top-level resource into the site directory,
// replacing what is there.
func (m *Mirror) SyncResources(ctx context.Context, cfg *config.Config) error {
	if m.disabled(cfg) {
		return nil
	}
	entries, err := m.ws.Resources(cfg)
	if err != nil {
		return err
	}
	lg := log.FromContext(ctx)
	var errs []error
	for _, e := range entries {
		src := m.ws.Abs(e.Name())
		dst := filepath.Join(cfg.SiteDir, e.Name())
		if err := replace(src, dst, e.IsDir()); err != nil {
			lg.Error("copy resource failed", "path", e.Name(), "dest", dst, "err", err)
			errs = append(errs, err)
		}
	}
	lg.Debug("resources synced", "count", len(entries), "site_dir", cfg.SiteDir)
	return errors.Join(errs...)
}

// MirrorResource applies a single resource change.
func (m *Mirror) MirrorResource(ctx context.Context, cfg *config.Config, ev site.Event) error {
	if m.disabled(cfg) {
		return nil
	}
	rel, err := m.ws.Rel(ev.Path)
	if err != nil {
		return err
	}
	if m.ws.Classify(cfg, rel, ev.IsDir) != RoleResource {
		return nil
	}
	dst := filepath.Join(cfg.SiteDir, filepath.FromSlash(rel))
	if !internal.Within(cfg.SiteDir, dst) {
		return fmt.Errorf("resource %s escapes the site directory", rel)
	}
	lg := log.FromContext(ctx)
	if ev.Removed {
		lg.Info("delete resource", "path", rel)
		if err := os.RemoveAll(dst); err != nil {
			return fmt.Errorf("remove %s: %w", dst, err)
		}
		return nil
	}
	lg.Info("copy resource", "path", rel, "dir", ev.IsDir)
	return replace(m.ws.Abs(rel), dst, ev.IsDir)
}

// replace copies src over dst. A directory replaces dst entirely.
func replace(src, dst string, isDir bool) error {
	if !isDir {
		return copyFile(src, dst)
	}
	if err := os.RemoveAll(dst); err != nil {
		return err
	}
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel != "." && internal.IsHidden(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		return copyFile(path, target)
	})
}

// copyFile atomically replaces dst with the contents and mode of src.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := renameio.TempFile("", dst)
	if err != nil {
		return err
	}
	defer out.Cleanup()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	if err := out.Chmod(info.Mode().Perm()); err != nil {
		return err
	}
	return out.CloseAtomicallyReplace()
}

var _ site.ResourceMirror = (*Mirror)(nil)
