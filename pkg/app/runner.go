// Package app provides the Runner that wires a published directory to the
// index engine, the file sink and the watcher. The CLI and the MCP server
// drive everything through it.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jlrickert/cli-toolkit/toolkit"
	"golang.org/x/sync/errgroup"

	"github.com/jlrickert/letterpress/pkg/log"
	"github.com/jlrickert/letterpress/pkg/publish"
	"github.com/jlrickert/letterpress/pkg/render"
	"github.com/jlrickert/letterpress/pkg/site"
)

// Options configures NewRunner.
type Options struct {
	// Runtime supplies the working directory and clock. A default OS
	// runtime is used when nil.
	Runtime *toolkit.Runtime

	// Dir is the published directory, relative to the runtime working
	// directory unless absolute.
	Dir string

	// Debounce overrides publish.DefaultDebounce.
	Debounce time.Duration
}

// Runner holds the resources of one published directory. Build and Watch
// may be called once each; Close releases everything.
type Runner struct {
	rt       *toolkit.Runtime
	ws       *publish.Workspace
	engine   *site.Engine
	debounce time.Duration

	mu      sync.Mutex
	lock    *publish.SiteLock
	built   bool
	closed  bool
	ready   chan struct{}
	readyMu sync.Once
}

// NewRunner resolves the published directory and constructs the engine.
// Nothing is read or written until Build.
func NewRunner(opts Options) (*Runner, error) {
	rt := opts.Runtime
	if rt == nil {
		var err error
		rt, err = toolkit.NewRuntime()
		if err != nil {
			return nil, err
		}
	}
	if opts.Dir == "" {
		return nil, errors.New("published directory is required")
	}
	dir, err := HostPath(rt, opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", opts.Dir, err)
	}
	ws, err := publish.NewWorkspace(dir)
	if err != nil {
		return nil, err
	}

	sink := render.NewFileSink(render.NewRenderer(ws.TemplatesDir()), ws.Dir())
	engine, err := site.NewEngine(site.EngineOptions{
		Source: ws,
		Sink:   sink,
		Mirror: publish.NewMirror(ws),
		Clock:  rt.Clock(),
	})
	if err != nil {
		return nil, err
	}
	return &Runner{
		rt:       rt,
		ws:       ws,
		engine:   engine,
		debounce: opts.Debounce,
		ready:    make(chan struct{}),
	}, nil
}

// HostPath resolves p against the runtime working directory and maps it
// out of the runtime jail, if any.
func HostPath(rt *toolkit.Runtime, p string) (string, error) {
	abs, err := rt.AbsPath(p)
	if err != nil {
		return "", err
	}
	if jail := rt.GetJail(); jail != "" {
		return toolkit.EnsureInJail(jail, abs), nil
	}
	return abs, nil
}

// Workspace returns the published directory.
func (r *Runner) Workspace() *publish.Workspace { return r.ws }

// Engine returns the index engine.
func (r *Runner) Engine() *site.Engine { return r.engine }

// Watching is closed once Watch observes the published directory.
func (r *Runner) Watching() <-chan struct{} { return r.ready }

// Build locks the site directory and publishes the whole site. Calling it
// again is a no-op.
func (r *Runner) Build(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return site.ErrShutdown
	}
	if r.built {
		return nil
	}

	lg := log.FromContext(ctx)
	cfg, err := r.ws.LoadConfig(ctx)
	if err != nil {
		return err
	}
	lock := publish.NewSiteLock(cfg.SiteDir)
	if err := lock.TryLock(); err != nil {
		return err
	}
	start := r.rt.Clock().Now()
	if err := r.engine.Rebuild(ctx); err != nil {
		_ = lock.Unlock()
		return fmt.Errorf("build %s: %w", r.ws.Dir(), err)
	}
	r.lock = lock
	snap := r.engine.Snapshot()
	lg.Info("site published",
		"dir", r.ws.Dir(),
		"site_dir", snap.SiteDir,
		"posts", len(snap.Posts),
		"tags", len(snap.Tags),
		"elapsed", r.rt.Clock().Now().Sub(start),
	)
	r.built = true
	return nil
}

// Watch builds the site if needed and then applies changes to the
// published directory until ctx is done.
func (r *Runner) Watch(ctx context.Context) error {
	if err := r.Build(ctx); err != nil {
		return err
	}
	w, err := publish.NewWatcher(r.ws, publish.WatcherOptions{
		Debounce: r.debounce,
		Config:   r.engine.Config,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(gctx) })
	g.Go(func() error {
		err := r.engine.Run(gctx, w.Events())
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		select {
		case <-w.Ready():
			r.readyMu.Do(func() { close(r.ready) })
		case <-gctx.Done():
		}
		return nil
	})
	return g.Wait()
}

// Close stops the engine and releases the site directory lock.
func (r *Runner) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	if err := r.engine.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if r.lock != nil {
		if err := r.lock.Unlock(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
