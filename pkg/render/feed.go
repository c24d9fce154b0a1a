package render

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/jlrickert/letterpress/pkg/site"
)

type rssXML struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	GUID        string `xml:"guid"`
}

// feed renders feed.xml from the feed template when the site has one, and
// as a generated RSS 2.0 document otherwise.
func (r *Renderer) feed(pg *site.FeedPage) ([]byte, error) {
	if text, ok := r.templates.Optional(FeedTemplate); ok {
		return r.feedFromTemplate(text, pg)
	}
	return r.rss(pg)
}

// feedFromTemplate repeats the {{#items}} section once per post. Items see
// the post placeholders with date in RFC 1123 form and content set to the
// excerpt.
func (r *Renderer) feedFromTemplate(text string, pg *site.FeedPage) ([]byte, error) {
	head, item, tail, ok := Section(text, ItemsSection)
	if !ok {
		return nil, &TemplateError{Name: FeedTemplate, Err: fmt.Errorf("%w: {{#%s}}", ErrNoSection, ItemsSection)}
	}
	var b strings.Builder
	b.WriteString(r.expand(head))
	for _, p := range pg.Posts {
		b.WriteString(r.expand(item, Vars{
			"date":    p.Date.Format(time.RFC1123Z),
			"content": p.Excerpt,
		}, postVars(p)))
	}
	b.WriteString(r.expand(tail))
	return []byte(b.String()), nil
}

// rss renders an RSS 2.0 document. The build date is the newest post's
// publish date so an unchanged site produces identical bytes.
func (r *Renderer) rss(pg *site.FeedPage) ([]byte, error) {
	items := make([]rssItem, 0, len(pg.Posts))
	var newest time.Time
	for _, p := range pg.Posts {
		if p.Date.After(newest) {
			newest = p.Date
		}
		items = append(items, rssItem{
			// Titles and excerpts are stored HTML escaped; the encoder
			// escapes again.
			Title:       html.UnescapeString(p.Title),
			Link:        p.Permalink,
			Description: html.UnescapeString(p.Excerpt),
			PubDate:     p.Date.Format(time.RFC1123Z),
			GUID:        p.Permalink,
		})
	}
	doc := rssXML{
		Version: "2.0",
		Channel: rssChannel{
			Title:       r.cfg.Title,
			Link:        r.cfg.URL(""),
			Description: r.cfg.Description,
			Items:       items,
		},
	}
	if !newest.IsZero() {
		doc.Channel.LastBuildDate = newest.Format(time.RFC1123Z)
	}
	return encodeXML(doc)
}

func encodeXML(v any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
