package render

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Template file names looked up in the templates directory.
const (
	PostTemplate         = "post.html"
	PostZhTemplate       = "post_zh.html"
	TagTemplate          = "tag_archive.html"
	TagListTemplate      = "tags.html"
	TimelineTemplate     = "index.html"
	MonthTemplate        = "monthly_archive.html"
	YearTemplate         = "yearly_archive.html"
	ArchiveTemplate      = "archive.html"
	NotFoundTemplate     = "404.html"
	CommonHeadTemplate   = "common_head.html"
	CommonHeaderTemplate = "common_header.html"

	// FeedTemplate is optional. Without it feed.xml is a generated RSS 2.0
	// document.
	FeedTemplate = "feed.xml"
)

// Section names used by the page templates.
const (
	PostsSection           = "posts"
	TagsSection            = "tags"
	MonthlyArchivesSection = "monthly_archives"
	ItemsSection           = "items"
)

const templateCacheSize = 32

var placeholderRE = regexp.MustCompile(`{{([^{}#/]+)}}`)

// Vars maps placeholder names to their replacement text.
type Vars map[string]string

// Expand replaces every {{name}} in text with the value of name in the
// first scope that defines it. Names no scope defines expand to nothing.
func Expand(text string, scopes ...Vars) string {
	return placeholderRE.ReplaceAllStringFunc(text, func(m string) string {
		name := strings.TrimSpace(m[2 : len(m)-2])
		for _, s := range scopes {
			if v, ok := s[name]; ok {
				return v
			}
		}
		return ""
	})
}

// Section splits text around the outermost {{#name}}...{{/name}} pair:
// the first opening tag and the last closing tag.
func Section(text, name string) (head, body, tail string, ok bool) {
	open := "{{#" + name + "}}"
	end := "{{/" + name + "}}"
	i := strings.Index(text, open)
	if i < 0 {
		return text, "", "", false
	}
	j := strings.LastIndex(text, end)
	if j < i+len(open) {
		return text, "", "", false
	}
	return text[:i], text[i+len(open) : j], text[j+len(end):], true
}

type cachedTemplate struct {
	text string
	err  error
}

// Templates loads page templates from a directory and keeps recently used
// ones in memory until Purge.
type Templates struct {
	dir   string
	cache *lru.Cache[string, cachedTemplate]
}

// NewTemplates returns a loader reading from dir.
func NewTemplates(dir string) *Templates {
	cache, _ := lru.New[string, cachedTemplate](templateCacheSize)
	return &Templates{dir: dir, cache: cache}
}

// Dir returns the templates directory.
func (ts *Templates) Dir() string { return ts.dir }

// Get returns the named template. A template that cannot be read yields a
// *TemplateError wrapping ErrTemplateMissing.
func (ts *Templates) Get(name string) (string, error) {
	if c, ok := ts.cache.Get(name); ok {
		return c.text, c.err
	}
	data, err := os.ReadFile(filepath.Join(ts.dir, name))
	c := cachedTemplate{text: string(data)}
	if err != nil {
		c = cachedTemplate{err: &TemplateError{Name: name, Err: fmt.Errorf("%w: %w", ErrTemplateMissing, err)}}
	}
	ts.cache.Add(name, c)
	return c.text, c.err
}

// Optional returns the named template, or false when it cannot be read.
func (ts *Templates) Optional(name string) (string, bool) {
	text, err := ts.Get(name)
	return text, err == nil
}

// Section loads the named template and splits it around section.
func (ts *Templates) Section(name, section string) (head, body, tail string, err error) {
	text, err := ts.Get(name)
	if err != nil {
		return "", "", "", err
	}
	head, body, tail, ok := Section(text, section)
	if !ok {
		return "", "", "", &TemplateError{Name: name, Err: fmt.Errorf("%w: {{#%s}}", ErrNoSection, section)}
	}
	return head, body, tail, nil
}

// Purge drops every cached template so edits are picked up.
func (ts *Templates) Purge() { ts.cache.Purge() }
