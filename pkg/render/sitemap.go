package render

import (
	"encoding/xml"
	"time"

	"github.com/jlrickert/letterpress/pkg/site"
)

const sitemapNS = "http://www.sitemaps.org/schemas/sitemap/0.9"

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// sitemap lists the timeline, the archive and tag directories, every
// yearly, monthly and tag archive, then every post with its publish date.
func (r *Renderer) sitemap(pg *site.SitemapPage) ([]byte, error) {
	var urls []sitemapURL
	add := func(loc, lastmod string) {
		urls = append(urls, sitemapURL{Loc: loc, LastMod: lastmod})
	}
	for k := range pg.Pages {
		add(r.TimelineURL(k), "")
	}
	add(r.cfg.URL("archive/"), "")
	add(r.cfg.URL("tags/"), "")
	for _, y := range pg.Years {
		add(r.YearURL(y.Year), "")
	}
	for _, m := range pg.Months {
		add(r.MonthURL(m.Key), "")
	}
	for _, t := range pg.Tags {
		add(r.TagURL(t.Key), "")
	}
	for _, p := range pg.Posts {
		add(p.Permalink, p.Date.Format(time.DateOnly))
	}
	return encodeXML(sitemapURLSet{XMLNS: sitemapNS, URLs: urls})
}
