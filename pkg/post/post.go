package post

import (
	"fmt"
	"html"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ncruces/go-strftime"
)

// ExcerptLength is the number of body runes used for a generated excerpt.
const ExcerptLength = 140

// PrettyDateFormat is the layout used for the human readable post date.
const PrettyDateFormat = "January 02, 2006"

// Options controls how a source document is turned into a Post.
type Options struct {
	// BaseURL is prefixed to the output path to build the permalink.
	BaseURL string

	// DateFormat is either a strftime pattern (contains '%') or a Go
	// reference layout.
	DateFormat string
}

// Post is a single published document. The body text is not part of the
// Post; Parse hands it back separately so indexes never retain it.
type Post struct {
	// Source is the document path. It is the identity of the post.
	Source string

	Title      string
	Date       time.Time
	PrettyDate string
	Excerpt    string
	Tags       []string
	Lang       string

	// Path is the slash separated output path relative to the site
	// directory, e.g. 2024/01/hello-world.html.
	Path      string
	Permalink string
}

// Parse builds a Post from raw document bytes. It returns the post and the
// markdown body. A document without a title or date yields a
// *ValidationError; a date that does not match opts.DateFormat yields a
// *DateParseError.
func Parse(source string, data []byte, opts Options) (*Post, string, error) {
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", source, err)
	}
	p, err := FromDocument(source, doc, opts)
	if err != nil {
		return nil, "", err
	}
	return p, doc.Body, nil
}

// FromDocument builds a Post from an already split document.
func FromDocument(source string, doc *Document, opts Options) (*Post, error) {
	title := doc.Get("title")
	if title == "" {
		return nil, &ValidationError{Source: source, Field: "title"}
	}
	rawDate := doc.Get("date")
	if rawDate == "" {
		return nil, &ValidationError{Source: source, Field: "date"}
	}
	date, err := ParseDate(opts.DateFormat, rawDate)
	if err != nil {
		return nil, &DateParseError{
			Source: source,
			Value:  rawDate,
			Format: opts.DateFormat,
			Cause:  err,
		}
	}

	excerpt := doc.Get("excerpt")
	if excerpt == "" {
		excerpt = Excerpt(doc.Body)
	}

	p := &Post{
		Source:     source,
		Title:      html.EscapeString(title),
		Date:       date,
		PrettyDate: date.Format(PrettyDateFormat),
		Excerpt:    html.EscapeString(excerpt),
		Tags:       SplitTags(doc.Get("tags")),
		Lang:       doc.Get("lang"),
	}
	p.Path = OutputPath(date, source)
	p.Permalink = JoinURL(opts.BaseURL, p.Path)
	return p, nil
}

// ParseDate parses value with a strftime pattern when format contains a
// '%' and as a Go reference layout otherwise.
func ParseDate(format, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if strings.Contains(format, "%") {
		return strftime.Parse(format, value)
	}
	if format == "" {
		format = time.DateOnly
	}
	return time.Parse(format, value)
}

// Excerpt returns the first ExcerptLength runes of body followed by an
// ellipsis when the body is longer.
func Excerpt(body string) string {
	body = strings.TrimSpace(body)
	if utf8.RuneCountInString(body) <= ExcerptLength {
		return body
	}
	n := 0
	for i := range body {
		if n == ExcerptLength {
			return body[:i] + "…"
		}
		n++
	}
	return body
}

// SplitTags splits a comma separated tag list. Whitespace is trimmed, empty
// entries are dropped and the order is kept.
func SplitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var tags []string
	for t := range strings.SplitSeq(raw, ",") {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		tags = append(tags, t)
	}
	return tags
}

// Slug derives the output file stem from a source path: the base name
// without extension, lower-cased, with spaces replaced by dashes.
func Slug(source string) string {
	base := filepath.Base(source)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.ReplaceAll(strings.ToLower(base), " ", "-")
}

// OutputPath returns the site relative output path for a post published at
// date from the given source path.
func OutputPath(date time.Time, source string) string {
	return fmt.Sprintf("%04d/%02d/%s.html", date.Year(), int(date.Month()), Slug(source))
}

// JoinURL joins a base URL and a slash separated relative path.
func JoinURL(base, rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if base == "" {
		return "/" + rel
	}
	if strings.HasSuffix(base, "/") {
		return base + rel
	}
	return base + "/" + rel
}

// FileName returns the base name of the source path.
func (p *Post) FileName() string {
	return filepath.Base(p.Source)
}

// Year returns the publish year.
func (p *Post) Year() int { return p.Date.Year() }

// Month returns the publish month.
func (p *Post) Month() time.Month { return p.Date.Month() }

// Dir returns the slash separated output directory of the post.
func (p *Post) Dir() string { return path.Dir(p.Path) }

// IsChinese reports whether the post declares a Chinese language marker.
func (p *Post) IsChinese() bool {
	switch strings.ToLower(p.Lang) {
	case "chinese", "中文", "zh", "zh-cn", "zh-tw":
		return true
	}
	return false
}

// HasTag reports whether the post carries tag exactly as written.
func (p *Post) HasTag(tag string) bool {
	return slices.Contains(p.Tags, tag)
}

func (p *Post) String() string {
	return fmt.Sprintf("%s (%s)", p.Source, p.Date.Format(time.DateOnly))
}

// Compare is the canonical post ordering: publish date ascending, then
// source file name, then full source path. Distinct posts never compare
// equal.
func Compare(a, b *Post) int {
	if c := a.Date.Compare(b.Date); c != 0 {
		return c
	}
	if c := strings.Compare(a.FileName(), b.FileName()); c != 0 {
		return c
	}
	return strings.Compare(a.Source, b.Source)
}

// CompareDesc is the reverse of Compare.
func CompareDesc(a, b *Post) int { return Compare(b, a) }
