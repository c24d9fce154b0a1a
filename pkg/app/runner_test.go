package app_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jlrickert/cli-toolkit/clock"
	"github.com/jlrickert/cli-toolkit/toolkit"
	"github.com/stretchr/testify/require"

	"github.com/jlrickert/letterpress/pkg/app"
	"github.com/jlrickert/letterpress/pkg/config"
	"github.com/jlrickert/letterpress/pkg/log"
	"github.com/jlrickert/letterpress/pkg/publish"
	"github.com/jlrickert/letterpress/pkg/render"
	"github.com/jlrickert/letterpress/pkg/site"
)

const monthly = "{{#monthly_archives}}{{monthly_archive_title}}:{{#posts}}{{title}};{{/posts}}{{/monthly_archives}}"

var templates = map[string]string{
	render.PostTemplate:     "<h1>{{title}}</h1>{{content}}",
	render.TagTemplate:      "{{archive_title}}:{{#posts}}{{title}};{{/posts}}",
	render.TagListTemplate:  "{{#tags}}{{tag_title}};{{/tags}}",
	render.TimelineTemplate: "{{#posts}}{{title}};{{/posts}}",
	render.MonthTemplate:    "{{archive_title}}:{{#posts}}{{title}};{{/posts}}",
	render.YearTemplate:     "{{archive_title}}|" + monthly,
	render.ArchiveTemplate:  monthly,
	render.NotFoundTemplate: "missing",
}

// fixture is a published directory with a site directory next to it.
type fixture struct {
	dir     string
	siteDir string
	rt      *toolkit.Runtime
	out     *bytes.Buffer
	handler *log.TestHandler
	ctx     context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	f := &fixture{
		dir:     filepath.Join(root, "published"),
		siteDir: filepath.Join(root, "site"),
		out:     &bytes.Buffer{},
	}
	f.write(t, config.FileName, "base_url: http://example.com\ndate_format: %Y-%m-%d\nsite_dir: ../site\nposts_per_page: 2\n")
	for name, body := range templates {
		f.write(t, filepath.Join(config.TemplatesDir, name), body)
	}

	lg, handler := log.NewTestLogger(t, log.ParseLevel("debug"))
	rt, err := toolkit.NewRuntime(
		toolkit.WithRuntimeClock(clock.NewTestClock(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))),
		toolkit.WithRuntimeLogger(lg),
		toolkit.WithRuntimeStream(&toolkit.Stream{In: &bytes.Buffer{}, Out: f.out, Err: f.out}),
	)
	require.NoError(t, err)
	f.rt = rt
	f.handler = handler
	f.ctx = log.ContextWithLogger(t.Context(), lg)
	return f
}

func (f *fixture) write(t *testing.T, rel, content string) {
	t.Helper()
	path := filepath.Join(f.dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func (f *fixture) output(t *testing.T, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(f.siteDir, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func (f *fixture) runner(t *testing.T) *app.Runner {
	t.Helper()
	r, err := app.NewRunner(app.Options{Runtime: f.rt, Dir: f.dir, Debounce: 20 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close(context.Background()) })
	return r
}

func TestNewRunner_RequiresDir(t *testing.T) {
	_, err := app.NewRunner(app.Options{})
	require.Error(t, err)
}

func TestNewRunner_MissingDir(t *testing.T) {
	_, err := app.NewRunner(app.Options{Dir: filepath.Join(t.TempDir(), "nope")})
	require.Error(t, err)
}

func TestRunner_BuildPublishesSite(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.md", "title: A\ndate: 2024-03-05\ntags: go\n\nhello\n")
	f.write(t, "b.md", "title: B\ndate: 2024-03-06\ntags: go\n\nworld\n")
	f.write(t, "logo.png", "png")

	r := f.runner(t)
	require.NoError(t, r.Build(f.ctx))

	require.Equal(t, "<h1>A</h1><p>hello</p>\n", f.output(t, "2024/03/a.html"))
	require.Equal(t, "B;A;", f.output(t, "index.html"))
	require.Equal(t, "go:B;A;", f.output(t, "tags/go/index.html"))
	require.Equal(t, "png", f.output(t, "logo.png"))
	require.FileExists(t, filepath.Join(f.siteDir, config.LockFileName))

	snap := r.Engine().Snapshot()
	require.Len(t, snap.Posts, 2)
	require.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), snap.UpdatedAt)
	log.RequireEntry(t, f.handler, log.HasMsg(log.ParseLevel("info"), "site published"), time.Second)

	// A second build is a no-op.
	require.NoError(t, r.Build(f.ctx))
}

func TestRunner_DeletingDotDotTagKeepsSite(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.md", "title: A\ndate: 2024-03-05\ntags: ..\n\nhello\n")
	f.write(t, "b.md", "title: B\ndate: 2024-03-06\n\nworld\n")

	r := f.runner(t)
	require.NoError(t, r.Build(f.ctx))
	require.Equal(t, "..:A;", f.output(t, "tags/%2E./index.html"))

	require.NoError(t, r.Engine().Apply(f.ctx, site.NewPostDeleted("a.md")))
	require.Equal(t, "<h1>B</h1><p>world</p>\n", f.output(t, "2024/03/b.html"))
	require.Equal(t, "B;", f.output(t, "index.html"))
	require.FileExists(t, filepath.Join(f.siteDir, config.LockFileName))
	require.NoDirExists(t, filepath.Join(f.siteDir, "tags", "%2E."))
}

func TestRunner_BuildInvalidConfig(t *testing.T) {
	f := newFixture(t)
	f.write(t, config.FileName, "base_url: http://example.com\n")

	r := f.runner(t)
	err := r.Build(f.ctx)
	require.Error(t, err)
	require.True(t, config.IsInvalidConfig(err))
}

func TestRunner_SecondRunnerIsLockedOut(t *testing.T) {
	f := newFixture(t)
	first := f.runner(t)
	require.NoError(t, first.Build(f.ctx))

	second := f.runner(t)
	require.ErrorIs(t, second.Build(f.ctx), publish.ErrLocked)

	require.NoError(t, first.Close(f.ctx))
	require.NoError(t, second.Build(f.ctx))
}

func TestRunner_BuildAfterCloseFails(t *testing.T) {
	f := newFixture(t)
	r := f.runner(t)
	require.NoError(t, r.Close(f.ctx))
	require.Error(t, r.Build(f.ctx))
	require.NoError(t, r.Close(f.ctx))
}

func TestRunner_WatchAppliesChanges(t *testing.T) {
	f := newFixture(t)
	f.write(t, "a.md", "title: A\ndate: 2024-03-05\n\nhello\n")

	r := f.runner(t)
	ctx, cancel := context.WithCancel(f.ctx)
	done := make(chan error, 1)
	go func() { done <- r.Watch(ctx) }()

	select {
	case <-r.Watching():
	case err := <-done:
		t.Fatalf("watch returned early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not start")
	}
	require.Equal(t, "A;", f.output(t, "index.html"))

	f.write(t, "b.md", "title: B\ndate: 2025-01-02\n\nnew\n")
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(filepath.Join(f.siteDir, "index.html"))
		return err == nil && string(data) == "B;A;"
	}, 5*time.Second, 20*time.Millisecond)
	require.FileExists(t, filepath.Join(f.siteDir, "2025", "01", "b.html"))

	require.NoError(t, os.Remove(filepath.Join(f.dir, "a.md")))
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(f.siteDir, "2024", "03", "a.html"))
		return os.IsNotExist(err)
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
