package cli_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	tu "github.com/jlrickert/cli-toolkit/sandbox"
	"github.com/jlrickert/cli-toolkit/toolkit"

	"github.com/jlrickert/letterpress/pkg/cli"
	"github.com/jlrickert/letterpress/pkg/config"
	"github.com/jlrickert/letterpress/pkg/render"
)

const blogConfig = "base_url: http://example.com\ndate_format: %Y-%m-%d\nsite_dir: ../site\ntitle: Test Blog\n"

var blogTemplates = map[string]string{
	render.PostTemplate:     "<h1>{{title}}</h1>{{content}}",
	render.TagTemplate:      "{{archive_title}}:{{#posts}}{{title}};{{/posts}}",
	render.TagListTemplate:  "{{#tags}}{{tag_title}};{{/tags}}",
	render.TimelineTemplate: "{{site_title}}|{{#posts}}{{title}};{{/posts}}",
	render.MonthTemplate:    "{{archive_title}}:{{#posts}}{{title}};{{/posts}}",
	render.YearTemplate:     "{{archive_title}}|{{#monthly_archives}}{{monthly_archive_title}}{{#posts}}{{title}};{{/posts}}{{/monthly_archives}}",
	render.ArchiveTemplate:  "{{#monthly_archives}}{{monthly_archive_title}}{{#posts}}{{title}};{{/posts}}{{/monthly_archives}}",
	render.NotFoundTemplate: "missing",
}

func NewSandbox(t *testing.T, opts ...tu.Option) *tu.Sandbox {
	return tu.NewSandbox(t, &tu.Options{
		Home: "/home/testuser",
		User: "testuser",
	}, opts...)
}

func NewProcess(t *testing.T, args ...string) *tu.Process {
	return tu.NewProcess(func(ctx context.Context, rt *toolkit.Runtime) (int, error) {
		return cli.Run(ctx, rt, args)
	}, false)
}

// writeBlog lays out a published directory at ~/blog with the given posts.
func writeBlog(t *testing.T, sb *tu.Sandbox, posts map[string]string) {
	t.Helper()
	sb.MustWriteFile("~/blog/"+config.FileName, []byte(blogConfig), 0o644)
	for name, body := range blogTemplates {
		sb.MustWriteFile("~/blog/"+config.TemplatesDir+"/"+name, []byte(body), 0o644)
	}
	for name, body := range posts {
		sb.MustWriteFile("~/blog/"+name, []byte(body), 0o644)
	}
}

// hostPath maps a sandbox path to the real filesystem.
func hostPath(t *testing.T, sb *tu.Sandbox, rel string) string {
	t.Helper()
	p, err := sb.AbsPath(rel)
	if err != nil {
		t.Fatalf("resolve %s: %v", rel, err)
	}
	return filepath.Join(sb.GetJail(), p)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
