package render_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jlrickert/letterpress/pkg/config"
	"github.com/jlrickert/letterpress/pkg/post"
	"github.com/jlrickert/letterpress/pkg/render"
	"github.com/jlrickert/letterpress/pkg/site"
	"github.com/stretchr/testify/require"
)

// testSite is a published directory in a temp dir with its templates,
// config and an output directory below it.
type testSite struct {
	dir       string
	templates string
	cfg       *config.Config
	renderer  *render.Renderer
}

func newTestSite(t *testing.T, templates map[string]string, extra string) *testSite {
	t.Helper()
	dir := t.TempDir()
	tdir := filepath.Join(dir, config.TemplatesDir)
	require.NoError(t, os.MkdirAll(tdir, 0o755))
	for name, text := range templates {
		require.NoError(t, os.WriteFile(filepath.Join(tdir, name), []byte(text), 0o644))
	}
	raw := "base_url: http://example.com\n" +
		"date_format: %Y-%m-%d\n" +
		"site_dir: " + filepath.Join(dir, "site") + "\n" +
		"title: Ink & Paper\n" +
		"description: Notes <on> things\n" +
		extra
	cfg, err := config.Parse([]byte(raw))
	require.NoError(t, err)

	r := render.NewRenderer(tdir)
	r.Configure(cfg)
	return &testSite{dir: dir, templates: tdir, cfg: cfg, renderer: r}
}

func (s *testSite) writeTemplate(t *testing.T, name, text string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(s.templates, name), []byte(text), 0o644))
}

func (s *testSite) render(t *testing.T, p site.Page) string {
	t.Helper()
	out, err := s.renderer.Render(p)
	require.NoError(t, err)
	return string(out)
}

func (s *testSite) parse(t *testing.T, source, raw string) (*post.Post, string) {
	t.Helper()
	p, body, err := post.Parse(source, []byte(raw), s.cfg.PostOptions())
	require.NoError(t, err)
	return p, body
}
