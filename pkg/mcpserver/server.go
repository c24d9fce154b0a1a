// Package mcpserver exposes the built site index over the Model Context
// Protocol. Every tool is read only and answers from an engine snapshot.
package mcpserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/jlrickert/letterpress/pkg/site"
)

// Name is the implementation name announced to clients.
const Name = "letterpress"

// Snapshotter supplies index snapshots. *site.Engine implements it.
type Snapshotter interface {
	Snapshot() site.Snapshot
}

// ListPostsInput filters list_posts.
type ListPostsInput struct {
	Tag   string `json:"tag,omitempty" jsonschema:"only posts carrying this tag, matched with the site's tag identity policy"`
	Year  int    `json:"year,omitempty" jsonschema:"only posts published in this year"`
	Month int    `json:"month,omitempty" jsonschema:"only posts published in this month (1-12), requires year"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of posts, most recent first"`
}

// ListPostsOutput is the result of list_posts.
type ListPostsOutput struct {
	Total int             `json:"total"`
	Posts []site.PostInfo `json:"posts"`
}

// ListTagsInput is empty.
type ListTagsInput struct{}

// ListTagsOutput is the result of list_tags.
type ListTagsOutput struct {
	Tags []site.TagInfo `json:"tags"`
}

// ListArchivesInput filters list_archives.
type ListArchivesInput struct {
	Year int `json:"year,omitempty" jsonschema:"only archives of this year"`
}

// ListArchivesOutput is the result of list_archives.
type ListArchivesOutput struct {
	Years  []site.YearInfo  `json:"years"`
	Months []site.MonthInfo `json:"months"`
}

// SiteStatusInput is empty.
type SiteStatusInput struct{}

// SiteStatusOutput is the result of site_status.
type SiteStatusOutput struct {
	State         string    `json:"state"`
	BaseURL       string    `json:"base_url"`
	SiteDir       string    `json:"site_dir"`
	PostsPerPage  int       `json:"posts_per_page"`
	TagIdentity   string    `json:"tag_identity"`
	Posts         int       `json:"posts"`
	Tags          int       `json:"tags"`
	Months        int       `json:"months"`
	Years         int       `json:"years"`
	TimelinePages int       `json:"timeline_pages"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Server serves the index tools.
type Server struct {
	src    Snapshotter
	mcp    *mcp.Server
	logger *slog.Logger
}

// NewServer returns a server answering from src.
func NewServer(src Snapshotter, version string, logger *slog.Logger) (*Server, error) {
	if src == nil {
		return nil, errors.New("snapshot source is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		src:    src,
		logger: logger,
		mcp:    mcp.NewServer(&mcp.Implementation{Name: Name, Version: version}, nil),
	}
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *mcp.Server { return s.mcp }

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_posts",
		Description: "List published posts, most recent first, optionally filtered by tag, year or month.",
	}, s.listPosts)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_tags",
		Description: "List tags with the source files of their posts.",
	}, s.listTags)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_archives",
		Description: "List yearly and monthly archives with their output paths.",
	}, s.listArchives)
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "site_status",
		Description: "Report engine state, site directory and index sizes.",
	}, s.siteStatus)
	s.logger.Debug("mcp tools registered", "count", 4)
}

// Serve runs the server over newline delimited JSON on in and out, normally
// stdin and stdout, until ctx is done or in reaches EOF. Neither stream is
// closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("mcp server starting", "transport", "stdio")
	t := &mcp.IOTransport{Reader: io.NopCloser(in), Writer: nopWriteCloser{out}}
	err := s.mcp.Run(ctx, t)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("mcp server stopped", "err", err)
		return err
	}
	s.logger.Info("mcp server stopped")
	return nil
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func (s *Server) listPosts(_ context.Context, _ *mcp.CallToolRequest, in ListPostsInput) (*mcp.CallToolResult, ListPostsOutput, error) {
	snap := s.src.Snapshot()
	var members map[string]bool
	if in.Tag != "" {
		members = map[string]bool{}
		key := site.TagKey(snap.TagIdentity, in.Tag)
		for _, t := range snap.Tags {
			if t.Key == key {
				for _, src := range t.Posts {
					members[src] = true
				}
			}
		}
	}
	posts := make([]site.PostInfo, 0, len(snap.Posts))
	for _, p := range slices.Backward(snap.Posts) {
		switch {
		case members != nil && !members[p.Source]:
			continue
		case in.Year != 0 && p.Date.Year() != in.Year:
			continue
		case in.Month != 0 && int(p.Date.Month()) != in.Month:
			continue
		}
		posts = append(posts, p)
	}
	out := ListPostsOutput{Total: len(posts), Posts: posts}
	if in.Limit > 0 && len(out.Posts) > in.Limit {
		out.Posts = out.Posts[:in.Limit]
	}
	return nil, out, nil
}

func (s *Server) listTags(_ context.Context, _ *mcp.CallToolRequest, _ ListTagsInput) (*mcp.CallToolResult, ListTagsOutput, error) {
	snap := s.src.Snapshot()
	tags := snap.Tags
	if tags == nil {
		tags = []site.TagInfo{}
	}
	return nil, ListTagsOutput{Tags: tags}, nil
}

func (s *Server) listArchives(_ context.Context, _ *mcp.CallToolRequest, in ListArchivesInput) (*mcp.CallToolResult, ListArchivesOutput, error) {
	snap := s.src.Snapshot()
	out := ListArchivesOutput{Years: []site.YearInfo{}, Months: []site.MonthInfo{}}
	for _, y := range snap.Years {
		if in.Year == 0 || y.Year == in.Year {
			out.Years = append(out.Years, y)
		}
	}
	for _, m := range snap.Months {
		if in.Year == 0 || m.Year == in.Year {
			out.Months = append(out.Months, m)
		}
	}
	return nil, out, nil
}

func (s *Server) siteStatus(_ context.Context, _ *mcp.CallToolRequest, _ SiteStatusInput) (*mcp.CallToolResult, SiteStatusOutput, error) {
	snap := s.src.Snapshot()
	return nil, SiteStatusOutput{
		State:         snap.State,
		BaseURL:       snap.BaseURL,
		SiteDir:       snap.SiteDir,
		PostsPerPage:  snap.PostsPerPage,
		TagIdentity:   string(snap.TagIdentity),
		Posts:         len(snap.Posts),
		Tags:          len(snap.Tags),
		Months:        len(snap.Months),
		Years:         len(snap.Years),
		TimelinePages: snap.TimelinePages,
		UpdatedAt:     snap.UpdatedAt,
	}, nil
}
