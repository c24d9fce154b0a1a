package mcpserver_test

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/require"

	"github.com/jlrickert/letterpress/pkg/config"
	"github.com/jlrickert/letterpress/pkg/mcpserver"
	"github.com/jlrickert/letterpress/pkg/site"
)

type emptySource struct{}

func (emptySource) LoadConfig(context.Context) (*config.Config, error) {
	return config.Parse([]byte("base_url: http://example.com\ndate_format: %Y-%m-%d\nsite_dir: /srv/site\n"))
}

func (emptySource) Documents(context.Context, *config.Config) ([]site.Document, error) {
	return nil, nil
}

type staticSource struct {
	snap site.Snapshot
}

func (s staticSource) Snapshot() site.Snapshot { return s.snap }

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func fixture() site.Snapshot {
	return site.Snapshot{
		State:         "idle",
		BaseURL:       "http://example.com",
		SiteDir:       "/srv/site",
		PostsPerPage:  2,
		TagIdentity:   config.TagFold,
		TimelinePages: 2,
		UpdatedAt:     day("2024-04-01"),
		Posts: []site.PostInfo{
			{Source: "a.md", Title: "A", Date: day("2023-12-24"), Path: "2023/12/a.html", Tags: []string{"go"}},
			{Source: "b.md", Title: "B", Date: day("2024-01-02"), Path: "2024/01/b.html", Tags: []string{"Go", "math"}},
			{Source: "c.md", Title: "C", Date: day("2024-03-05"), Path: "2024/03/c.html", Tags: []string{"math"}},
		},
		Tags: []site.TagInfo{
			{Key: "go", Name: "go", Posts: []string{"b.md", "a.md"}},
			{Key: "math", Name: "math", Posts: []string{"c.md", "b.md"}},
		},
		Months: []site.MonthInfo{
			{Year: 2023, Month: 12, Path: "2023/12/index.html", Posts: []string{"a.md"}},
			{Year: 2024, Month: 1, Path: "2024/01/index.html", Posts: []string{"b.md"}},
			{Year: 2024, Month: 3, Path: "2024/03/index.html", Posts: []string{"c.md"}},
		},
		Years: []site.YearInfo{
			{Year: 2023, Path: "2023/index.html", Months: []int{12}, Posts: 1},
			{Year: 2024, Path: "2024/index.html", Months: []int{1, 3}, Posts: 2},
		},
	}
}

// connect starts the server on an in-memory transport and returns a
// connected client session.
func connect(t *testing.T, snap site.Snapshot) *mcp.ClientSession {
	t.Helper()
	srv, err := mcpserver.NewServer(staticSource{snap: snap}, "test", nil)
	require.NoError(t, err)

	ctx := t.Context()
	clientT, serverT := mcp.NewInMemoryTransports()
	ss, err := srv.MCPServer().Connect(ctx, serverT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "test"}, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func call[T any](t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) T {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.False(t, res.IsError, "tool %s returned an error", name)

	raw, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func titles(posts []site.PostInfo) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.Title
	}
	return out
}

func TestNewServer_RequiresSource(t *testing.T) {
	_, err := mcpserver.NewServer(nil, "test", nil)
	require.Error(t, err)
}

func TestServer_ListsTools(t *testing.T) {
	cs := connect(t, fixture())
	res, err := cs.ListTools(context.Background(), nil)
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	require.ElementsMatch(t, []string{"list_posts", "list_tags", "list_archives", "site_status"}, names)
}

func TestServer_ListPosts(t *testing.T) {
	cs := connect(t, fixture())

	tests := []struct {
		name  string
		args  map[string]any
		total int
		want  []string
	}{
		{name: "all newest first", args: map[string]any{}, total: 3, want: []string{"C", "B", "A"}},
		{name: "limit", args: map[string]any{"limit": 1}, total: 3, want: []string{"C"}},
		{name: "by tag key", args: map[string]any{"tag": "go"}, total: 2, want: []string{"B", "A"}},
		{name: "by folded tag", args: map[string]any{"tag": "MATH"}, total: 2, want: []string{"C", "B"}},
		{name: "by year", args: map[string]any{"year": 2024}, total: 2, want: []string{"C", "B"}},
		{name: "by month", args: map[string]any{"year": 2024, "month": 3}, total: 1, want: []string{"C"}},
		{name: "unknown tag", args: map[string]any{"tag": "rust"}, total: 0, want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := call[mcpserver.ListPostsOutput](t, cs, "list_posts", tt.args)
			require.Equal(t, tt.total, out.Total)
			require.Equal(t, tt.want, titles(out.Posts))
		})
	}
}

func TestServer_ListPostsExactTagIdentity(t *testing.T) {
	snap := site.Snapshot{
		State:       "idle",
		TagIdentity: config.TagExact,
		Posts: []site.PostInfo{
			{Source: "a.md", Title: "A", Date: day("2024-01-01"), Tags: []string{"Math"}},
			{Source: "b.md", Title: "B", Date: day("2024-01-02"), Tags: []string{"math"}},
		},
		Tags: []site.TagInfo{
			{Key: "Math", Name: "Math", Posts: []string{"a.md"}},
			{Key: "math", Name: "math", Posts: []string{"b.md"}},
		},
	}
	cs := connect(t, snap)

	out := call[mcpserver.ListPostsOutput](t, cs, "list_posts", map[string]any{"tag": "math"})
	require.Equal(t, []string{"B"}, titles(out.Posts))
	out = call[mcpserver.ListPostsOutput](t, cs, "list_posts", map[string]any{"tag": "Math"})
	require.Equal(t, []string{"A"}, titles(out.Posts))
	out = call[mcpserver.ListPostsOutput](t, cs, "list_posts", map[string]any{"tag": "MATH"})
	require.Equal(t, 0, out.Total)
}

func TestServer_ListTags(t *testing.T) {
	cs := connect(t, fixture())
	out := call[mcpserver.ListTagsOutput](t, cs, "list_tags", nil)
	require.Len(t, out.Tags, 2)
	require.Equal(t, "go", out.Tags[0].Key)
	require.Equal(t, []string{"b.md", "a.md"}, out.Tags[0].Posts)
}

func TestServer_ListTagsEmptySite(t *testing.T) {
	cs := connect(t, site.Snapshot{State: "idle"})
	out := call[mcpserver.ListTagsOutput](t, cs, "list_tags", nil)
	require.Empty(t, out.Tags)
}

func TestServer_ListArchives(t *testing.T) {
	cs := connect(t, fixture())

	all := call[mcpserver.ListArchivesOutput](t, cs, "list_archives", nil)
	require.Len(t, all.Years, 2)
	require.Len(t, all.Months, 3)

	one := call[mcpserver.ListArchivesOutput](t, cs, "list_archives", map[string]any{"year": 2024})
	require.Len(t, one.Years, 1)
	require.Equal(t, []int{1, 3}, one.Years[0].Months)
	require.Len(t, one.Months, 2)
	require.Equal(t, "2024/03/index.html", one.Months[1].Path)
}

func TestServer_SiteStatus(t *testing.T) {
	cs := connect(t, fixture())
	out := call[mcpserver.SiteStatusOutput](t, cs, "site_status", nil)
	require.Equal(t, "idle", out.State)
	require.Equal(t, "/srv/site", out.SiteDir)
	require.Equal(t, "fold", out.TagIdentity)
	require.Equal(t, 3, out.Posts)
	require.Equal(t, 2, out.Tags)
	require.Equal(t, 3, out.Months)
	require.Equal(t, 2, out.Years)
	require.Equal(t, 2, out.TimelinePages)
	require.True(t, day("2024-04-01").Equal(out.UpdatedAt))
}

func TestServer_AnswersFromEngine(t *testing.T) {
	eng, err := site.NewEngine(site.EngineOptions{Source: emptySource{}, Sink: site.NewMemorySink()})
	require.NoError(t, err)
	require.NoError(t, eng.Rebuild(context.Background()))

	srv, err := mcpserver.NewServer(eng, "test", nil)
	require.NoError(t, err)
	ctx := t.Context()
	clientT, serverT := mcp.NewInMemoryTransports()
	ss, err := srv.MCPServer().Connect(ctx, serverT, nil)
	require.NoError(t, err)
	defer ss.Close()
	cs, err := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "test"}, nil).Connect(ctx, clientT, nil)
	require.NoError(t, err)
	defer cs.Close()

	out := call[mcpserver.SiteStatusOutput](t, cs, "site_status", nil)
	require.Equal(t, "idle", out.State)
	require.Equal(t, "/srv/site", out.SiteDir)
	require.Equal(t, "exact", out.TagIdentity)
	require.Zero(t, out.Posts)
	require.False(t, out.UpdatedAt.IsZero())
}

func TestServer_ServeOverStreams(t *testing.T) {
	srv, err := mcpserver.NewServer(staticSource{snap: fixture()}, "test", nil)
	require.NoError(t, err)

	clientIn, serverOut := io.Pipe()
	serverIn, clientOut := io.Pipe()

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, serverIn, serverOut) }()

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "test"}, nil)
	cs, err := client.Connect(ctx, &mcp.IOTransport{Reader: clientIn, Writer: clientOut}, nil)
	require.NoError(t, err)

	out := call[mcpserver.SiteStatusOutput](t, cs, "site_status", nil)
	require.Equal(t, 3, out.Posts)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	_ = cs.Close()
}
