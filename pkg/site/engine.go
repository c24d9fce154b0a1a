package site

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jlrickert/cli-toolkit/clock"
	"github.com/jlrickert/letterpress/pkg/config"
	"github.com/jlrickert/letterpress/pkg/log"
	"github.com/jlrickert/letterpress/pkg/post"
)

// State is the engine's processing state.
type State int32

const (
	Idle State = iota
	Applying
	Rebuilding
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Applying:
		return "applying"
	case Rebuilding:
		return "rebuilding"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Document is a raw post document read from the source directory.
type Document struct {
	Path string
	Raw  []byte
}

// Source supplies the config and the full document set for rebuilds.
type Source interface {
	LoadConfig(ctx context.Context) (*config.Config, error)
	Documents(ctx context.Context, cfg *config.Config) ([]Document, error)
}

// Sink turns pages into output. Render and Remove are called from the
// engine's worker only. Reset is called before every full rebuild with the
// config the following pages are rendered under.
type Sink interface {
	Reset(ctx context.Context, cfg *config.Config) error
	Render(ctx context.Context, page Page) error
	Remove(ctx context.Context, page Page) error
}

// Cleaner is implemented by sinks that can empty their output before the
// initial build.
type Cleaner interface {
	Clean(ctx context.Context) error
}

// ResourceMirror copies non-post files into the site directory.
type ResourceMirror interface {
	SyncResources(ctx context.Context, cfg *config.Config) error
	MirrorResource(ctx context.Context, cfg *config.Config, ev Event) error
}

// EngineOptions configures NewEngine.
type EngineOptions struct {
	Source Source
	Sink   Sink

	// Mirror is optional.
	Mirror ResourceMirror

	// QueueSize bounds the Submit queue. Defaults to 64.
	QueueSize int

	// Clock stamps Snapshot.UpdatedAt. Defaults to the OS clock.
	Clock clock.Clock
}

// Engine owns the post store and every derived index. It applies one
// event at a time and hands the pages each event changed to its Sink.
//
// Mutation happens only on the goroutine calling Apply (normally Run).
// Snapshot may be called from any goroutine.
type Engine struct {
	source Source
	sink   Sink
	mirror ResourceMirror
	clock  clock.Clock

	state atomic.Int32

	// mu guards the fields below against Snapshot readers.
	mu       sync.RWMutex
	cfg      *config.Config
	store    *PostStore
	tags     *TagIndex
	timeline *TimelineIndex
	calendar *CalendarIndex
	updated  time.Time

	queue     chan Event
	closing   chan struct{}
	closeOnce sync.Once
	running   atomic.Bool
	done      chan struct{}
}

// NewEngine returns an idle engine with empty indices. Call Rebuild to
// perform the initial build.
func NewEngine(opts EngineOptions) (*Engine, error) {
	if opts.Source == nil {
		return nil, errors.New("engine: source is required")
	}
	if opts.Sink == nil {
		return nil, errors.New("engine: sink is required")
	}
	size := opts.QueueSize
	if size <= 0 {
		size = 64
	}
	return &Engine{
		source:   opts.Source,
		sink:     opts.Sink,
		mirror:   opts.Mirror,
		clock:    clock.OrDefault(opts.Clock),
		store:    NewPostStore(),
		tags:     NewTagIndex(config.TagExact),
		timeline: NewTimelineIndex(config.DefaultPostsPerPage),
		calendar: NewCalendarIndex(),
		queue:    make(chan Event, size),
		closing:  make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// State returns the current processing state.
func (e *Engine) State() State { return State(e.state.Load()) }

// Config returns the config of the last successful build.
func (e *Engine) Config() *config.Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// Rebuild loads the config, reads every document and publishes the whole
// site, emptying the output first. Configuration errors are returned.
func (e *Engine) Rebuild(ctx context.Context) error {
	if !e.state.CompareAndSwap(int32(Idle), int32(Rebuilding)) {
		return ErrBusy
	}
	defer e.state.Store(int32(Idle))

	cfg, err := e.source.LoadConfig(ctx)
	if err != nil {
		return err
	}
	return e.touch(e.rebuild(ctx, cfg, true))
}

// Apply processes a single event to completion. It returns ErrBusy when
// another event or a rebuild is in progress and ErrShutdown after Shutdown.
// Rejected documents and output failures are logged, not returned; a
// missing required template is returned.
func (e *Engine) Apply(ctx context.Context, ev Event) error {
	select {
	case <-e.closing:
		return ErrShutdown
	default:
	}
	if !e.state.CompareAndSwap(int32(Idle), int32(Applying)) {
		return ErrBusy
	}
	defer e.state.Store(int32(Idle))

	return e.touch(e.apply(ctx, ev))
}

// touch records a successful pass.
func (e *Engine) touch(err error) error {
	if err == nil {
		now := e.clock.Now()
		e.mu.Lock()
		e.updated = now
		e.mu.Unlock()
	}
	return err
}

func (e *Engine) apply(ctx context.Context, ev Event) error {
	lg := log.FromContext(ctx)
	if e.cfg == nil && ev.Kind != ResourceChanged {
		lg.Info("site not built yet, rebuilding", "event", ev.String())
		cfg, err := e.source.LoadConfig(ctx)
		if err != nil {
			return err
		}
		return e.rebuild(ctx, cfg, false)
	}

	if ev.Rebuilds() {
		return e.reload(ctx, ev)
	}

	switch ev.Kind {
	case PostAdded, PostChanged:
		return e.upsert(ctx, ev)
	case PostDeleted:
		return e.delete(ctx, ev.Path)
	case ResourceChanged:
		if e.mirror == nil || e.cfg == nil {
			return nil
		}
		if err := e.mirror.MirrorResource(ctx, e.cfg, ev); err != nil {
			lg.Error("mirror resource failed", "path", ev.Path, "err", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnknownEvent, ev)
	}
}

// reload handles events that invalidate every page. A config that fails to
// load keeps the current site.
func (e *Engine) reload(ctx context.Context, ev Event) error {
	lg := log.FromContext(ctx)
	cfg := e.cfg
	if ev.Kind == ConfigChanged {
		next, err := e.source.LoadConfig(ctx)
		if err != nil {
			lg.Error("config reload failed, keeping current site", "err", err)
			return nil
		}
		cfg = next
	}
	lg.Info("rebuilding site", "event", ev.String())
	return e.rebuild(ctx, cfg, false)
}

// Submit queues ev for Run.
func (e *Engine) Submit(ctx context.Context, ev Event) error {
	select {
	case <-e.closing:
		return ErrShutdown
	default:
	}
	select {
	case e.queue <- ev:
		return nil
	case <-e.closing:
		return ErrShutdown
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run applies events from the Submit queue and from events, if not nil,
// one at a time until ctx is cancelled or Shutdown is called. A closed
// events channel is ignored from then on.
func (e *Engine) Run(ctx context.Context, events <-chan Event) error {
	if !e.running.CompareAndSwap(false, true) {
		return errors.New("engine: already running")
	}
	defer close(e.done)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.closing:
			return nil
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			e.handle(ctx, ev)
		case ev := <-e.queue:
			e.handle(ctx, ev)
		}
	}
}

func (e *Engine) handle(ctx context.Context, ev Event) {
	if err := e.Apply(ctx, ev); err != nil && !errors.Is(err, ErrShutdown) {
		log.FromContext(ctx).Error("event failed", "event", ev.String(), "err", err)
	}
}

// Shutdown stops accepting events and waits for Run to finish the event
// in flight.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.closeOnce.Do(func() { close(e.closing) })
	if !e.running.Load() {
		return nil
	}
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// rebuild parses every document under cfg, builds fresh indices, swaps
// them in and renders the complete site.
func (e *Engine) rebuild(ctx context.Context, cfg *config.Config, initial bool) error {
	e.state.Store(int32(Rebuilding))
	lg := log.FromContext(ctx)

	docs, err := e.source.Documents(ctx, cfg)
	if err != nil {
		return fmt.Errorf("read documents: %w", err)
	}

	store := NewPostStore()
	bodies := make(map[string]string, len(docs))
	for _, d := range docs {
		p, body, err := post.Parse(d.Path, d.Raw, cfg.PostOptions())
		if err != nil {
			logRejected(ctx, d.Path, err)
			continue
		}
		store.Add(d.Path, p)
		bodies[d.Path] = body
	}
	all := store.All()
	tags := NewTagIndex(cfg.TagIdentity)
	tags.Rebuild(all)
	timeline := NewTimelineIndex(cfg.PostsPerPage)
	timeline.Rebuild(all, cfg.PostsPerPage)
	calendar := NewCalendarIndex()
	calendar.Rebuild(all)

	e.mu.Lock()
	prev := e.cfg
	stale := e.pagesLocked(nil)
	e.cfg, e.store, e.tags, e.timeline, e.calendar = cfg, store, tags, timeline, calendar
	fresh := e.pagesLocked(bodies)
	e.mu.Unlock()

	if err := e.sink.Reset(ctx, cfg); err != nil {
		return fmt.Errorf("reset output: %w", err)
	}
	moved := prev != nil && prev.SiteDir != cfg.SiteDir
	if initial {
		if c, ok := e.sink.(Cleaner); ok {
			if err := c.Clean(ctx); err != nil {
				return fmt.Errorf("clean output: %w", err)
			}
		}
	}
	if (initial || moved) && e.mirror != nil {
		if err := e.mirror.SyncResources(ctx, cfg); err != nil {
			lg.Error("resource sync failed", "site_dir", cfg.SiteDir, "err", err)
		}
	}

	cs := NewChangeSet()
	if !moved {
		for _, p := range stale {
			cs.Remove(p)
		}
	}
	for _, p := range fresh {
		cs.Render(p)
	}
	lg.Info("site rebuilt",
		"posts", store.Len(),
		"tags", tags.Len(),
		"pages", timeline.Len(),
		"months", len(calendar.months),
		"years", len(calendar.years),
	)
	return e.flush(ctx, cs)
}

// upsert parses the document and replaces any post stored at its path.
func (e *Engine) upsert(ctx context.Context, ev Event) error {
	lg := log.FromContext(ctx)
	p, body, err := post.Parse(ev.Path, ev.Raw, e.cfg.PostOptions())
	if err != nil {
		logRejected(ctx, ev.Path, err)
		return nil
	}

	e.mu.Lock()
	m := newMutation()
	old := e.store.Add(ev.Path, p)
	if old != nil {
		e.detachLocked(old, m)
	}
	e.attachLocked(p, m)
	e.finishLocked(m)
	cs := e.changesLocked(m)
	e.mu.Unlock()

	if old != nil && old.Path != p.Path {
		cs.Remove(&PostPage{Post: old})
	}
	cs.Render(&PostPage{Post: p, Body: body})

	if old != nil {
		lg.Info("post updated", "path", ev.Path, "output", p.Path)
	} else {
		lg.Info("post added", "path", ev.Path, "output", p.Path)
	}
	return e.flush(ctx, cs)
}

// delete removes the post stored at path. Unknown paths are a no-op.
func (e *Engine) delete(ctx context.Context, path string) error {
	lg := log.FromContext(ctx)

	e.mu.Lock()
	old, ok := e.store.Remove(path)
	if !ok {
		e.mu.Unlock()
		lg.Debug("delete of unknown post ignored", "path", path)
		return nil
	}
	m := newMutation()
	e.detachLocked(old, m)
	e.finishLocked(m)
	cs := e.changesLocked(m)
	e.mu.Unlock()

	cs.Remove(&PostPage{Post: old})
	lg.Info("post deleted", "path", path, "output", old.Path)
	return e.flush(ctx, cs)
}

// mutation accumulates the buckets touched by one event.
type mutation struct {
	tags       map[string]*Tag
	months     map[MonthKey]*MonthlyArchive
	monthLinks []MonthKey
	years      map[int]*YearlyArchive
	yearLinks  []int
	pages      []int
	gonePages  []int
}

func newMutation() *mutation {
	return &mutation{
		tags:   map[string]*Tag{},
		months: map[MonthKey]*MonthlyArchive{},
		years:  map[int]*YearlyArchive{},
	}
}

func (m *mutation) addTags(tags ...*Tag) {
	for _, t := range tags {
		m.tags[t.Key] = t
	}
}

func (m *mutation) addCalendar(d CalendarDelta) {
	if !d.Changed() {
		return
	}
	m.months[d.Month.Key] = d.Month
	if d.MonthCreated || d.MonthRemoved {
		m.monthLinks = append(m.monthLinks, d.Month.Key)
	}
	if d.Year != nil {
		m.years[d.Year.Year] = d.Year
		if d.YearCreated || d.YearRemoved {
			m.yearLinks = append(m.yearLinks, d.Year.Year)
		}
	}
}

func (m *mutation) addTimeline(d TimelineDelta) {
	m.pages = append(m.pages, d.Dirty...)
	m.gonePages = append(m.gonePages, d.Removed...)
}

func (e *Engine) incremental() bool {
	return e.cfg.TimelinePolicy != config.TimelineRebuild
}

func (e *Engine) detachLocked(p *post.Post, m *mutation) {
	touched, deleted := e.tags.OnRemove(p)
	m.addTags(touched...)
	m.addTags(deleted...)
	m.addCalendar(e.calendar.OnRemove(p))
	if e.incremental() {
		m.addTimeline(e.timeline.OnRemove(p))
	}
}

func (e *Engine) attachLocked(p *post.Post, m *mutation) {
	m.addTags(e.tags.OnAdd(p)...)
	m.addCalendar(e.calendar.OnAdd(p))
	if e.incremental() {
		m.addTimeline(e.timeline.OnAdd(p))
	}
}

func (e *Engine) finishLocked(m *mutation) {
	if !e.incremental() {
		m.addTimeline(e.timeline.Rebuild(e.store.All(), e.cfg.PostsPerPage))
	}
}

// changesLocked turns a mutation into the pages to render or remove,
// reading the final index state.
func (e *Engine) changesLocked(m *mutation) *ChangeSet {
	cs := NewChangeSet()

	for _, key := range slices.Sorted(maps.Keys(m.tags)) {
		if live, ok := e.tags.tags[key]; ok {
			cs.Render(&TagPage{Tag: live})
		} else {
			cs.Remove(&TagPage{Tag: m.tags[key]})
		}
	}

	monthKeys := slices.SortedFunc(maps.Keys(m.months), MonthKey.compare)
	for _, k := range monthKeys {
		if live, ok := e.calendar.Month(k.Year, k.Month); ok {
			cs.Render(e.monthPageLocked(live))
		} else {
			cs.Remove(&MonthPage{Archive: m.months[k]})
		}
	}
	for _, k := range m.monthLinks {
		prev, next := e.calendar.MonthNeighbors(k)
		for _, n := range []*MonthlyArchive{prev, next} {
			if n != nil {
				cs.Render(e.monthPageLocked(n))
			}
		}
	}

	for _, y := range slices.Sorted(maps.Keys(m.years)) {
		if live, ok := e.calendar.Year(y); ok {
			cs.Render(e.yearPageLocked(live))
		} else {
			cs.Remove(&YearPage{Archive: m.years[y]})
		}
	}
	for _, y := range m.yearLinks {
		prev, next := e.calendar.YearNeighbors(y)
		for _, n := range []*YearlyArchive{prev, next} {
			if n != nil {
				cs.Render(e.yearPageLocked(n))
			}
		}
	}

	count := e.timeline.Len()
	pages := slices.Compact(slices.Sorted(slices.Values(m.pages)))
	for _, k := range pages {
		if pg, ok := e.timeline.Page(k); ok {
			cs.Render(pg)
		}
	}
	gone := slices.Compact(slices.Sorted(slices.Values(m.gonePages)))
	for _, k := range gone {
		if k >= count {
			cs.Remove(&TimelinePage{Index: k})
		}
	}

	cs.Render(&TagListPage{Tags: e.tags.Tags()})
	cs.Render(&ArchivePage{Months: e.calendar.Months()})
	cs.Render(&FeedPage{Posts: e.timeline.Posts()})
	cs.Render(e.sitemapLocked())
	return cs
}

func (e *Engine) monthPageLocked(m *MonthlyArchive) *MonthPage {
	prev, next := e.calendar.MonthNeighbors(m.Key)
	return &MonthPage{Archive: m, Prev: prev, Next: next}
}

func (e *Engine) yearPageLocked(y *YearlyArchive) *YearPage {
	prev, next := e.calendar.YearNeighbors(y.Year)
	return &YearPage{Archive: y, Prev: prev, Next: next}
}

func (e *Engine) sitemapLocked() *SitemapPage {
	return &SitemapPage{
		Posts:  e.timeline.Posts(),
		Tags:   e.tags.Tags(),
		Months: e.calendar.Months(),
		Years:  e.calendar.Years(),
		Pages:  e.timeline.Len(),
	}
}

// pagesLocked lists every page of the current state. bodies supplies post
// bodies for rendering and may be nil when the pages are only removed.
func (e *Engine) pagesLocked(bodies map[string]string) []Page {
	if e.cfg == nil {
		return nil
	}
	var pages []Page
	for _, p := range e.store.All() {
		pages = append(pages, &PostPage{Post: p, Body: bodies[p.Source]})
	}
	tags := e.tags.Tags()
	for _, t := range tags {
		pages = append(pages, &TagPage{Tag: t})
	}
	pages = append(pages, &TagListPage{Tags: tags})
	for _, pg := range e.timeline.Pages() {
		pages = append(pages, pg)
	}
	for _, m := range e.calendar.Months() {
		pages = append(pages, e.monthPageLocked(m))
	}
	for _, y := range e.calendar.Years() {
		pages = append(pages, e.yearPageLocked(y))
	}
	pages = append(pages,
		&ArchivePage{Months: e.calendar.Months()},
		&FeedPage{Posts: e.timeline.Posts()},
		e.sitemapLocked(),
		&NotFoundPage{},
	)
	return pages
}

// flush removes then renders the pages of cs. Output failures are logged
// and skipped; a missing required template aborts the pass.
func (e *Engine) flush(ctx context.Context, cs *ChangeSet) error {
	lg := log.FromContext(ctx)
	removes := cs.Removes()
	for _, p := range removes {
		if err := e.sink.Remove(ctx, p); err != nil {
			lg.Error("remove output failed", "kind", p.Kind().String(), "output", p.OutputPath(), "err", err)
		}
	}
	renders := cs.Renders()
	for _, p := range renders {
		if err := e.sink.Render(ctx, p); err != nil {
			if IsTemplateMissing(err) {
				lg.Error("render pass aborted", "kind", p.Kind().String(), "output", p.OutputPath(), "err", err)
				return err
			}
			lg.Error("render output failed", "kind", p.Kind().String(), "output", p.OutputPath(), "err", err)
		}
	}
	lg.Debug("changes flushed", "rendered", len(renders), "removed", len(removes))
	return nil
}

func logRejected(ctx context.Context, path string, err error) {
	lg := log.FromContext(ctx)
	switch {
	case post.IsValidation(err):
		lg.Error("post missing required field", "path", path, "err", err)
	case post.IsParse(err):
		lg.Error("post field unparsable", "path", path, "err", err)
	default:
		lg.Error("post rejected", "path", path, "err", err)
	}
}
