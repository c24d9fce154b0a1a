package site

import (
	"fmt"
	"strings"

	"github.com/jlrickert/letterpress/pkg/post"
)

// Kind identifies the type of a rendered page.
type Kind int

const (
	KindPost Kind = iota
	KindTag
	KindTagList
	KindTimeline
	KindMonth
	KindYear
	KindArchive
	KindFeed
	KindSitemap
	KindNotFound
)

var kindNames = [...]string{
	KindPost:     "post",
	KindTag:      "tag",
	KindTagList:  "tags",
	KindTimeline: "timeline",
	KindMonth:    "month",
	KindYear:     "year",
	KindArchive:  "archive",
	KindFeed:     "feed",
	KindSitemap:  "sitemap",
	KindNotFound: "404",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Page is a view handed to a Sink. OutputPath is slash separated and
// relative to the site directory.
type Page interface {
	Kind() Kind
	OutputPath() string
}

// PostPage renders a single post. Body is the markdown source; it is only
// set for renders, never for removals.
type PostPage struct {
	Post *post.Post
	Body string
}

func (p *PostPage) Kind() Kind         { return KindPost }
func (p *PostPage) OutputPath() string { return p.Post.Path }

// TagPage lists the posts of one tag.
type TagPage struct {
	Tag *Tag
}

func (p *TagPage) Kind() Kind         { return KindTag }
func (p *TagPage) OutputPath() string { return TagDir(p.Tag.Key) + "/index.html" }

// TagDir returns the slash separated output directory of the tag key.
func TagDir(key string) string { return "tags/" + TagSegment(key) }

// TagSegment maps a tag key to a single path segment. Percent signs,
// separators, control bytes and a leading dot are percent-encoded, so
// distinct keys never share or nest directories and "." or ".." cannot
// escape tags/.
func TagSegment(key string) string {
	if key == "" {
		return "%00"
	}
	var b strings.Builder
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c == '%', c == '/', c == '\\', c < 0x20, c == 0x7f, i == 0 && c == '.':
			fmt.Fprintf(&b, "%%%02X", c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// TagListPage is the directory of all tags.
type TagListPage struct {
	Tags []*Tag
}

func (p *TagListPage) Kind() Kind         { return KindTagList }
func (p *TagListPage) OutputPath() string { return "tags/index.html" }

func (p *TimelinePage) Kind() Kind { return KindTimeline }

func (p *TimelinePage) OutputPath() string { return TimelinePath(p.Index) }

// TimelinePath returns the output path of timeline page k.
func TimelinePath(k int) string {
	if k == 0 {
		return "index.html"
	}
	return fmt.Sprintf("archive/%d/index.html", k)
}

// MonthPage renders a monthly archive with links to the neighbouring
// months.
type MonthPage struct {
	Archive *MonthlyArchive
	Prev    *MonthlyArchive
	Next    *MonthlyArchive
}

func (p *MonthPage) Kind() Kind         { return KindMonth }
func (p *MonthPage) OutputPath() string { return MonthDir(p.Archive.Key) + "/index.html" }

// MonthDir returns the slash separated output directory of a month.
func MonthDir(k MonthKey) string {
	return fmt.Sprintf("%04d/%02d", k.Year, int(k.Month))
}

// YearPage renders a yearly archive with links to the neighbouring years.
type YearPage struct {
	Archive *YearlyArchive
	Prev    *YearlyArchive
	Next    *YearlyArchive
}

func (p *YearPage) Kind() Kind         { return KindYear }
func (p *YearPage) OutputPath() string { return YearDir(p.Archive.Year) + "/index.html" }

// YearDir returns the slash separated output directory of a year.
func YearDir(year int) string { return fmt.Sprintf("%04d", year) }

// ArchivePage is the combined all-time archive. Months are ascending.
type ArchivePage struct {
	Months []*MonthlyArchive
}

func (p *ArchivePage) Kind() Kind         { return KindArchive }
func (p *ArchivePage) OutputPath() string { return "archive/index.html" }

// FeedPage is the syndication feed. Posts are most recent first.
type FeedPage struct {
	Posts []*post.Post
}

func (p *FeedPage) Kind() Kind         { return KindFeed }
func (p *FeedPage) OutputPath() string { return "feed.xml" }

// SitemapPage lists every published URL.
type SitemapPage struct {
	Posts  []*post.Post
	Tags   []*Tag
	Months []*MonthlyArchive
	Years  []*YearlyArchive
	Pages  int
}

func (p *SitemapPage) Kind() Kind         { return KindSitemap }
func (p *SitemapPage) OutputPath() string { return "sitemap.xml" }

// NotFoundPage is the static 404 page.
type NotFoundPage struct{}

func (p *NotFoundPage) Kind() Kind         { return KindNotFound }
func (p *NotFoundPage) OutputPath() string { return "404.html" }

var (
	_ Page = (*PostPage)(nil)
	_ Page = (*TagPage)(nil)
	_ Page = (*TagListPage)(nil)
	_ Page = (*TimelinePage)(nil)
	_ Page = (*MonthPage)(nil)
	_ Page = (*YearPage)(nil)
	_ Page = (*ArchivePage)(nil)
	_ Page = (*FeedPage)(nil)
	_ Page = (*SitemapPage)(nil)
	_ Page = (*NotFoundPage)(nil)
)
