// Package render turns engine pages into HTML and XML files.
package render

import (
	"fmt"
	"html"
	"net/url"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/jlrickert/letterpress/pkg/config"
	"github.com/jlrickert/letterpress/pkg/post"
	"github.com/jlrickert/letterpress/pkg/site"
)

const (
	prevTitle = "<"
	nextTitle = ">"
)

// Renderer produces the bytes of every page kind from the templates
// directory. It is driven by a single goroutine.
type Renderer struct {
	templates *Templates
	cfg       *config.Config
	md        *Markdown
	tags      *site.TagIndex
}

// NewRenderer returns a renderer reading templates from templatesDir. It
// must be configured before use.
func NewRenderer(templatesDir string) *Renderer {
	return &Renderer{templates: NewTemplates(templatesDir)}
}

// Configure switches the renderer to cfg and drops cached templates.
func (r *Renderer) Configure(cfg *config.Config) {
	r.cfg = cfg
	r.md = NewMarkdown(cfg.Get("math_delimiter"))
	r.tags = site.NewTagIndex(cfg.TagIdentity)
	r.templates.Purge()
}

// Templates returns the template loader.
func (r *Renderer) Templates() *Templates { return r.templates }

// Render returns the content of p.
func (r *Renderer) Render(p site.Page) ([]byte, error) {
	if r.cfg == nil {
		return nil, ErrNotConfigured
	}
	var (
		out string
		err error
	)
	switch pg := p.(type) {
	case *site.PostPage:
		out, err = r.post(pg)
	case *site.TagPage:
		out, err = r.tag(pg)
	case *site.TagListPage:
		out, err = r.tagList(pg)
	case *site.TimelinePage:
		out, err = r.timeline(pg)
	case *site.MonthPage:
		out, err = r.month(pg)
	case *site.YearPage:
		out, err = r.year(pg)
	case *site.ArchivePage:
		out, err = r.archive(pg)
	case *site.NotFoundPage:
		out, err = r.notFound()
	case *site.FeedPage:
		return r.feed(pg)
	case *site.SitemapPage:
		return r.sitemap(pg)
	default:
		return nil, fmt.Errorf("render: unsupported page %T", p)
	}
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// common returns the placeholders every template can use.
func (r *Renderer) common() Vars {
	head, _ := r.templates.Optional(CommonHeadTemplate)
	header, _ := r.templates.Optional(CommonHeaderTemplate)
	return Vars{
		"common_head":      head,
		"common_header":    header,
		"site_title":       html.EscapeString(r.cfg.Title),
		"site_description": html.EscapeString(r.cfg.Description),
		"site_link":        r.cfg.BaseURL,
	}
}

func (r *Renderer) expand(text string, vars ...Vars) string {
	scopes := append(vars, r.common(), Vars(r.cfg.Values))
	return Expand(text, scopes...)
}

// TagURL returns the permalink of a tag archive.
func (r *Renderer) TagURL(key string) string {
	return r.cfg.URL(tagPath(key) + "/")
}

// tagPath is the URL path of a tag archive, relative to the site root.
func tagPath(key string) string {
	return "tags/" + url.PathEscape(site.TagSegment(key))
}

// TimelineURL returns the permalink of timeline page k.
func (r *Renderer) TimelineURL(k int) string {
	if k == 0 {
		return r.cfg.URL("")
	}
	return r.cfg.URL(fmt.Sprintf("archive/%d/", k))
}

// MonthURL returns the permalink of a monthly archive.
func (r *Renderer) MonthURL(k site.MonthKey) string {
	return r.cfg.URL(site.MonthDir(k) + "/")
}

// YearURL returns the permalink of a yearly archive.
func (r *Renderer) YearURL(year int) string {
	return r.cfg.URL(site.YearDir(year) + "/")
}

func (r *Renderer) tagLinks(tags []string) string {
	links := make([]string, 0, len(tags))
	for _, name := range tags {
		href := "/" + tagPath(r.tags.Key(name)) + "/"
		links = append(links, fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(href), html.EscapeString(name)))
	}
	return strings.Join(links, ", ")
}

func postVars(p *post.Post) Vars {
	return Vars{
		"title":       p.Title,
		"date":        p.Date.Format(time.DateOnly),
		"pretty_date": p.PrettyDate,
		"permalink":   p.Permalink,
		"excerpt":     p.Excerpt,
	}
}

func (r *Renderer) postItems(item string, posts []*post.Post) string {
	var b strings.Builder
	for _, p := range posts {
		b.WriteString(r.expand(item, postVars(p)))
	}
	return b.String()
}

func isMath(p *post.Post) bool {
	return slices.ContainsFunc(p.Tags, func(t string) bool {
		return strings.EqualFold(t, MathTag)
	})
}

func (r *Renderer) post(pg *site.PostPage) (string, error) {
	p := pg.Post
	name := PostTemplate
	if p.IsChinese() {
		if _, ok := r.templates.Optional(PostZhTemplate); ok {
			name = PostZhTemplate
		}
	}
	tmpl, err := r.templates.Get(name)
	if err != nil {
		return "", err
	}
	math := isMath(p)
	content, err := r.md.Convert(pg.Body, math)
	if err != nil {
		return "", fmt.Errorf("convert %s: %w", p.Source, err)
	}
	vars := postVars(p)
	vars["monthly_archive_url"] = r.cfg.URL(path.Dir(p.Path) + "/")
	vars["year"] = p.Date.Format("2006")
	vars["month"] = p.Date.Format("January")
	vars["day"] = p.Date.Format("02")
	vars["tags"] = r.tagLinks(p.Tags)
	vars["content"] = content

	out := r.expand(tmpl, vars)
	if math {
		out = injectMathJax(out, r.md.Delimiter())
	}
	return out, nil
}

func (r *Renderer) tag(pg *site.TagPage) (string, error) {
	head, item, tail, err := r.templates.Section(TagTemplate, PostsSection)
	if err != nil {
		return "", err
	}
	vars := Vars{
		"archive_title": html.EscapeString(pg.Tag.Name),
		"archive_url":   r.TagURL(pg.Tag.Key),
	}
	return r.expand(head, vars) + r.postItems(item, pg.Tag.Posts) + r.expand(tail, vars), nil
}

func articleCount(n int) string {
	if n == 1 {
		return "1 Article"
	}
	return strconv.Itoa(n) + " Articles"
}

func (r *Renderer) tagList(pg *site.TagListPage) (string, error) {
	head, item, tail, err := r.templates.Section(TagListTemplate, TagsSection)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(r.expand(head))
	for _, t := range pg.Tags {
		b.WriteString(r.expand(item, Vars{
			"tag_title": html.EscapeString(t.Name),
			"tag_url":   r.TagURL(t.Key),
			"tag_size":  articleCount(t.Len()),
		}))
	}
	b.WriteString(r.expand(tail))
	return b.String(), nil
}

// neighbours fills the prev/next placeholders. prev points back in time.
func neighbours(vars Vars, prevURL, nextURL string) Vars {
	vars["prev_archive_title"], vars["prev_archive_url"] = "", ""
	vars["next_archive_title"], vars["next_archive_url"] = "", ""
	if prevURL != "" {
		vars["prev_archive_title"], vars["prev_archive_url"] = prevTitle, prevURL
	}
	if nextURL != "" {
		vars["next_archive_title"], vars["next_archive_url"] = nextTitle, nextURL
	}
	return vars
}

func (r *Renderer) timeline(pg *site.TimelinePage) (string, error) {
	head, item, tail, err := r.templates.Section(TimelineTemplate, PostsSection)
	if err != nil {
		return "", err
	}
	var older, newer string
	if pg.Older != site.NoPage {
		older = r.TimelineURL(pg.Older)
	}
	if pg.Newer != site.NoPage {
		newer = r.TimelineURL(pg.Newer)
	}
	vars := neighbours(Vars{"archive_url": r.TimelineURL(pg.Index)}, older, newer)
	return r.expand(head, vars) + r.postItems(item, pg.Posts) + r.expand(tail, vars), nil
}

func (r *Renderer) month(pg *site.MonthPage) (string, error) {
	head, item, tail, err := r.templates.Section(MonthTemplate, PostsSection)
	if err != nil {
		return "", err
	}
	k := pg.Archive.Key
	var prev, next string
	if pg.Prev != nil {
		prev = r.MonthURL(pg.Prev.Key)
	}
	if pg.Next != nil {
		next = r.MonthURL(pg.Next.Key)
	}
	t := k.Time()
	vars := neighbours(Vars{
		"archive_title":      t.Format("January, 2006"),
		"archive_url":        r.MonthURL(k),
		"month":              t.Format("January"),
		"year":               t.Format("2006"),
		"yearly_archive_url": r.YearURL(k.Year),
	}, prev, next)
	return r.expand(head, vars) + r.postItems(item, pg.Archive.Posts) + r.expand(tail, vars), nil
}

// monthItems renders each month with the monthly_archives section body.
// newestFirst reverses both the months and their posts.
func (r *Renderer) monthItems(name, body string, months []*site.MonthlyArchive, titleLayout string, newestFirst bool) (string, error) {
	mhead, item, mtail, ok := Section(body, PostsSection)
	if !ok {
		return "", &TemplateError{Name: name, Err: fmt.Errorf("%w: {{#%s}} in {{#%s}}", ErrNoSection, PostsSection, MonthlyArchivesSection)}
	}
	if newestFirst {
		months = slices.Clone(months)
		slices.Reverse(months)
	}
	var b strings.Builder
	for _, m := range months {
		posts := m.Posts
		if newestFirst {
			posts = slices.Clone(posts)
			slices.Reverse(posts)
		}
		vars := Vars{
			"monthly_archive_title": m.Key.Time().Format(titleLayout),
			"monthly_archive_url":   r.MonthURL(m.Key),
		}
		b.WriteString(r.expand(mhead, vars))
		b.WriteString(r.postItems(item, posts))
		b.WriteString(r.expand(mtail, vars))
	}
	return b.String(), nil
}

func (r *Renderer) year(pg *site.YearPage) (string, error) {
	head, body, tail, err := r.templates.Section(YearTemplate, MonthlyArchivesSection)
	if err != nil {
		return "", err
	}
	var prev, next string
	if pg.Prev != nil {
		prev = r.YearURL(pg.Prev.Year)
	}
	if pg.Next != nil {
		next = r.YearURL(pg.Next.Year)
	}
	vars := neighbours(Vars{
		"archive_title": site.YearDir(pg.Archive.Year),
		"archive_url":   r.YearURL(pg.Archive.Year),
		"year":          site.YearDir(pg.Archive.Year),
	}, prev, next)
	items, err := r.monthItems(YearTemplate, body, pg.Archive.Months, "January", false)
	if err != nil {
		return "", err
	}
	return r.expand(head, vars) + items + r.expand(tail, vars), nil
}

func (r *Renderer) archive(pg *site.ArchivePage) (string, error) {
	head, body, tail, err := r.templates.Section(ArchiveTemplate, MonthlyArchivesSection)
	if err != nil {
		return "", err
	}
	items, err := r.monthItems(ArchiveTemplate, body, pg.Months, "January, 2006", true)
	if err != nil {
		return "", err
	}
	return r.expand(head) + items + r.expand(tail), nil
}

func (r *Renderer) notFound() (string, error) {
	tmpl, err := r.templates.Get(NotFoundTemplate)
	if err != nil {
		return "", err
	}
	return r.expand(tmpl), nil
}
