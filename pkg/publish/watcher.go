package publish

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jlrickert/letterpress/pkg/config"
	"github.com/jlrickert/letterpress/pkg/internal"
	"github.com/jlrickert/letterpress/pkg/log"
	"github.com/jlrickert/letterpress/pkg/site"
)

// DefaultDebounce is the quiet period before a burst of changes is handed
// to the engine.
const DefaultDebounce = 200 * time.Millisecond

// WatcherOptions configures NewWatcher.
type WatcherOptions struct {
	// Debounce defaults to DefaultDebounce.
	Debounce time.Duration

	// Config returns the configuration used to classify paths, normally
	// Engine.Config. When it returns nil the config file is read.
	Config func() *config.Config

	// BufferSize bounds the event channel. Defaults to 64.
	BufferSize int
}

// Watcher observes a workspace and converts filesystem notifications into
// engine events.
type Watcher struct {
	ws     *Workspace
	opts   WatcherOptions
	fsw    *fsnotify.Watcher
	deb    *Debouncer
	events chan site.Event
	ready  chan struct{}
}

// NewWatcher returns a watcher for ws. Call Run to start it.
func NewWatcher(ws *Workspace, opts WatcherOptions) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 64
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	return &Watcher{
		ws:     ws,
		opts:   opts,
		fsw:    fsw,
		deb:    NewDebouncer(opts.Debounce),
		events: make(chan site.Event, opts.BufferSize),
		ready:  make(chan struct{}),
	}, nil
}

// Events returns the channel of engine events. It is closed when Run
// returns.
func (w *Watcher) Events() <-chan site.Event { return w.events }

// Ready is closed once the initial directories are watched.
func (w *Watcher) Ready() <-chan struct{} { return w.ready }

func (w *Watcher) config(ctx context.Context) *config.Config {
	if w.opts.Config != nil {
		if cfg := w.opts.Config(); cfg != nil {
			return cfg
		}
	}
	cfg, err := w.ws.LoadConfig(ctx)
	if err != nil {
		return nil
	}
	return cfg
}

// Run watches until ctx is done. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.events)
	defer w.deb.Stop()
	defer w.fsw.Close()

	lg := log.FromContext(ctx)
	if err := w.addRecursive(ctx, w.ws.Dir()); err != nil {
		return fmt.Errorf("watch %s: %w", w.ws.Dir(), err)
	}
	close(w.ready)
	lg.Info("watching published directory", "dir", w.ws.Dir())

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.notify(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			lg.Warn("watch error", "err", err)
		case batch, ok := <-w.deb.Output():
			if !ok {
				return nil
			}
			for _, c := range batch {
				ev, ok := w.translate(ctx, c)
				if !ok {
					continue
				}
				select {
				case w.events <- ev:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

// notify feeds a raw notification into the debouncer and starts watching
// newly created directories.
func (w *Watcher) notify(ctx context.Context, ev fsnotify.Event) {
	rel, err := w.ws.Rel(ev.Name)
	if err != nil || rel == "." {
		return
	}
	var op Op
	switch {
	case ev.Has(fsnotify.Create):
		op = OpCreate
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(ctx, ev.Name); err != nil {
				log.FromContext(ctx).Warn("watch directory failed", "path", rel, "err", err)
			}
		}
	case ev.Has(fsnotify.Write):
		op = OpWrite
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		op = OpRemove
	default:
		return
	}
	w.deb.Add(Change{Path: rel, Op: op})
}

// translate turns a debounced change into an engine event.
func (w *Watcher) translate(ctx context.Context, c Change) (site.Event, bool) {
	cfg := w.config(ctx)
	abs := w.ws.Abs(c.Path)
	info, statErr := os.Stat(abs)
	gone := c.Op == OpRemove || errors.Is(statErr, fs.ErrNotExist)
	isDir := statErr == nil && info.IsDir()

	switch w.ws.Classify(cfg, c.Path, isDir) {
	case RoleConfig:
		if gone {
			log.FromContext(ctx).Warn("config file removed, keeping current site", "path", c.Path)
			return site.Event{}, false
		}
		return site.NewConfigChanged(), true
	case RoleTemplate:
		if isDir || (gone && c.Path == config.TemplatesDir) {
			return site.Event{}, false
		}
		return site.NewTemplateChanged(c.Path), true
	case RolePost:
		if gone {
			return site.NewPostDeleted(c.Path), true
		}
		raw, err := os.ReadFile(abs)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return site.NewPostDeleted(c.Path), true
			}
			log.FromContext(ctx).Error("read post failed", "path", c.Path, "err", err)
			return site.Event{}, false
		}
		if c.Op == OpCreate {
			return site.NewPostAdded(c.Path, raw), true
		}
		return site.NewPostChanged(c.Path, raw), true
	case RoleResource:
		return site.NewResourceChanged(c.Path, isDir, gone), true
	default:
		return site.Event{}, false
	}
}

// addRecursive watches root and every directory below it, skipping hidden
// directories and a site directory nested in the workspace.
func (w *Watcher) addRecursive(ctx context.Context, root string) error {
	cfg := w.config(ctx)
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.ws.Dir() {
			rel, _ := w.ws.Rel(path)
			if internal.IsHidden(rel) {
				return filepath.SkipDir
			}
			if cfg != nil && cfg.SiteDir != w.ws.Dir() && internal.Within(cfg.SiteDir, path) {
				return filepath.SkipDir
			}
		}
		return w.fsw.Add(path)
	})
}
