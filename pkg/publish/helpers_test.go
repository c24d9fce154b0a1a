package publish_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jlrickert/letterpress/pkg/config"
	"github.com/jlrickert/letterpress/pkg/publish"
	"github.com/stretchr/testify/require"
)

// newWorkspace creates a published directory holding a config whose site
// directory is siteDir, relative to the workspace.
func newWorkspace(t *testing.T, siteDir string) (*publish.Workspace, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, config.FileName, "base_url: http://example.com\ndate_format: %Y-%m-%d\nsite_dir: "+siteDir+"\n")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, config.TemplatesDir), 0o755))
	ws, err := publish.NewWorkspace(dir)
	require.NoError(t, err)
	cfg, err := ws.LoadConfig(t.Context())
	require.NoError(t, err)
	return ws, cfg
}

func writeFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
