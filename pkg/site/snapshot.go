package site

import (
	"time"

	"github.com/jlrickert/letterpress/pkg/config"
	"github.com/jlrickert/letterpress/pkg/post"
)

// PostInfo summarizes a post for readers outside the engine.
type PostInfo struct {
	Source    string    `json:"source"`
	Title     string    `json:"title"`
	Date      time.Time `json:"date"`
	Path      string    `json:"path"`
	Permalink string    `json:"permalink"`
	Tags      []string  `json:"tags,omitempty"`
}

// TagInfo summarizes a tag. Posts are source paths, most recent first.
type TagInfo struct {
	Key   string   `json:"key"`
	Name  string   `json:"name"`
	Posts []string `json:"posts"`
}

// MonthInfo summarizes a monthly archive. Posts are source paths in
// ascending order.
type MonthInfo struct {
	Year  int      `json:"year"`
	Month int      `json:"month"`
	Path  string   `json:"path"`
	Posts []string `json:"posts"`
}

// YearInfo summarizes a yearly archive.
type YearInfo struct {
	Year   int    `json:"year"`
	Path   string `json:"path"`
	Months []int  `json:"months"`
	Posts  int    `json:"posts"`
}

// Snapshot is an immutable copy of the engine's indices.
type Snapshot struct {
	State         string      `json:"state"`
	BaseURL       string      `json:"base_url"`
	SiteDir       string      `json:"site_dir"`
	PostsPerPage  int         `json:"posts_per_page"`
	Posts         []PostInfo  `json:"posts"`
	Tags          []TagInfo   `json:"tags"`
	Months        []MonthInfo `json:"months"`
	Years         []YearInfo  `json:"years"`
	TimelinePages int         `json:"timeline_pages"`

	// TagIdentity is the policy TagInfo keys were built with. Match names
	// against them with TagKey.
	TagIdentity config.TagIdentity `json:"tag_identity"`

	// UpdatedAt is when the last event or rebuild completed, zero before
	// the first build.
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot copies the current index state. Safe for concurrent use.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snap := Snapshot{
		State:         e.State().String(),
		TagIdentity:   e.tags.Identity(),
		TimelinePages: e.timeline.Len(),
		UpdatedAt:     e.updated,
	}
	if e.cfg != nil {
		snap.BaseURL = e.cfg.BaseURL
		snap.SiteDir = e.cfg.SiteDir
		snap.PostsPerPage = e.cfg.PostsPerPage
	}
	for _, p := range e.store.All() {
		snap.Posts = append(snap.Posts, PostInfo{
			Source:    p.Source,
			Title:     p.Title,
			Date:      p.Date,
			Path:      p.Path,
			Permalink: p.Permalink,
			Tags:      append([]string(nil), p.Tags...),
		})
	}
	for _, t := range e.tags.Tags() {
		snap.Tags = append(snap.Tags, TagInfo{Key: t.Key, Name: t.Name, Posts: sources(t.Posts)})
	}
	for _, m := range e.calendar.Months() {
		snap.Months = append(snap.Months, MonthInfo{
			Year:  m.Key.Year,
			Month: int(m.Key.Month),
			Path:  MonthDir(m.Key) + "/index.html",
			Posts: sources(m.Posts),
		})
	}
	for _, y := range e.calendar.Years() {
		info := YearInfo{Year: y.Year, Path: YearDir(y.Year) + "/index.html", Posts: y.Len()}
		for _, m := range y.Months {
			info.Months = append(info.Months, int(m.Key.Month))
		}
		snap.Years = append(snap.Years, info)
	}
	return snap
}

func sources(posts []*post.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.Source
	}
	return out
}
