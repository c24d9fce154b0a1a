package site

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jlrickert/letterpress/pkg/config"
	"github.com/jlrickert/letterpress/pkg/log"
	"github.com/jlrickert/letterpress/pkg/post"
	"github.com/stretchr/testify/require"
)

const baseConfig = `base_url: http://example.com
date_format: %Y-%m-%d
site_dir: /srv/site
posts_per_page: 2
`

func mkPost(source, date string, tags ...string) *post.Post {
	d, err := time.Parse(time.DateOnly, date)
	if err != nil {
		panic(err)
	}
	return &post.Post{
		Source: source,
		Title:  strings.TrimSuffix(source, ".md"),
		Date:   d,
		Tags:   tags,
		Path:   post.OutputPath(d, source),
	}
}

func doc(title, date string, tags ...string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "title: %s\n", title)
	if date != "" {
		fmt.Fprintf(&b, "date: %s\n", date)
	}
	if len(tags) > 0 {
		fmt.Fprintf(&b, "tags: %s\n", strings.Join(tags, ", "))
	}
	fmt.Fprintf(&b, "\nBody of %s.\n", title)
	return []byte(b.String())
}

func mustConfig(t *testing.T, extra string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(baseConfig + extra))
	require.NoError(t, err)
	return cfg
}

// memSource serves documents from memory.
type memSource struct {
	mu     sync.Mutex
	cfg    *config.Config
	cfgErr error
	docs   map[string][]byte
}

func (s *memSource) LoadConfig(context.Context) (*config.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfgErr != nil {
		return nil, s.cfgErr
	}
	return s.cfg, nil
}

func (s *memSource) Documents(context.Context, *config.Config) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Document
	for _, path := range slices.Sorted(maps.Keys(s.docs)) {
		out = append(out, Document{Path: path, Raw: s.docs[path]})
	}
	return out, nil
}

func (s *memSource) put(path string, raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.docs == nil {
		s.docs = map[string][]byte{}
	}
	s.docs[path] = raw
}

func (s *memSource) drop(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, path)
}

type fixture struct {
	src  *memSource
	sink *MemorySink
	eng  *Engine
	ctx  context.Context
	th   *log.TestHandler
}

func newFixture(t *testing.T, cfgExtra string) *fixture {
	t.Helper()
	lg, th := log.NewTestLogger(t, slog.LevelDebug)
	src := &memSource{cfg: mustConfig(t, cfgExtra), docs: map[string][]byte{}}
	sink := NewMemorySink()
	sink.Format = describe
	eng, err := NewEngine(EngineOptions{Source: src, Sink: sink})
	require.NoError(t, err)
	return &fixture{
		src:  src,
		sink: sink,
		eng:  eng,
		ctx:  log.ContextWithLogger(t.Context(), lg),
		th:   th,
	}
}

// publish stores a document and applies the matching event.
func (f *fixture) publish(t *testing.T, path string, raw []byte) {
	t.Helper()
	f.src.mu.Lock()
	_, exists := f.src.docs[path]
	f.src.mu.Unlock()
	f.src.put(path, raw)
	ev := NewPostAdded(path, raw)
	if exists {
		ev = NewPostChanged(path, raw)
	}
	require.NoError(t, f.eng.Apply(f.ctx, ev))
}

func (f *fixture) unpublish(t *testing.T, path string) {
	t.Helper()
	f.src.drop(path)
	require.NoError(t, f.eng.Apply(f.ctx, NewPostDeleted(path)))
}

// rebuilt returns the output of a fresh engine built from the fixture's
// current documents and config.
func (f *fixture) rebuilt(t *testing.T) map[string]string {
	t.Helper()
	sink := NewMemorySink()
	sink.Format = describe
	eng, err := NewEngine(EngineOptions{Source: f.src, Sink: sink})
	require.NoError(t, err)
	require.NoError(t, eng.Rebuild(log.ContextWithLogger(t.Context(), log.NewNopLogger())))
	return sink.Contents()
}

func opsOf(sink *MemorySink, op string) []string {
	var out []string
	for _, o := range sink.Ops() {
		if o.Op == op {
			out = append(out, o.Path)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// describe renders the observable content of a page as text.
func describe(p Page) string {
	var b strings.Builder
	b.WriteString(p.Kind().String())
	b.WriteByte(' ')
	switch pg := p.(type) {
	case *PostPage:
		fmt.Fprintf(&b, "%s|%s|%v|%s", pg.Post.Title, pg.Post.Date.Format(time.DateOnly), pg.Post.Tags, pg.Body)
	case *TagPage:
		fmt.Fprintf(&b, "%s|%s|%v", pg.Tag.Key, pg.Tag.Name, sources(pg.Tag.Posts))
	case *TagListPage:
		for _, t := range pg.Tags {
			fmt.Fprintf(&b, "%s:%s:%d,", t.Key, t.Name, t.Len())
		}
	case *TimelinePage:
		fmt.Fprintf(&b, "%d|%v|%d|%d", pg.Index, sources(pg.Posts), pg.Newer, pg.Older)
	case *MonthPage:
		fmt.Fprintf(&b, "%s|%v|%s|%s", pg.Archive.Key, sources(pg.Archive.Posts), monthName(pg.Prev), monthName(pg.Next))
	case *YearPage:
		fmt.Fprintf(&b, "%d|", pg.Archive.Year)
		for _, m := range pg.Archive.Months {
			fmt.Fprintf(&b, "%s:%v,", m.Key, sources(m.Posts))
		}
		fmt.Fprintf(&b, "|%s|%s", yearName(pg.Prev), yearName(pg.Next))
	case *ArchivePage:
		for _, m := range pg.Months {
			fmt.Fprintf(&b, "%s:%v,", m.Key, sources(m.Posts))
		}
	case *FeedPage:
		fmt.Fprintf(&b, "%v", sources(pg.Posts))
	case *SitemapPage:
		fmt.Fprintf(&b, "%v|%d|%d|%d|%d", sources(pg.Posts), len(pg.Tags), len(pg.Months), len(pg.Years), pg.Pages)
	}
	return b.String()
}

func monthName(m *MonthlyArchive) string {
	if m == nil {
		return "-"
	}
	return m.Key.String()
}

func yearName(y *YearlyArchive) string {
	if y == nil {
		return "-"
	}
	return fmt.Sprintf("%04d", y.Year)
}
