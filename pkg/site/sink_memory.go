package site

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/jlrickert/letterpress/pkg/config"
)

// SinkOp records one call made on a MemorySink.
type SinkOp struct {
	Op   string // "render" or "remove"
	Path string
	Kind Kind
}

// MemorySink keeps rendered pages in memory keyed by output path. It is
// used by tests and by commands that only need the index.
type MemorySink struct {
	mu       sync.Mutex
	pages    map[string]Page
	contents map[string]string
	ops      []SinkOp
	resets   int
	cfg      *config.Config

	// Format, when set, is applied to every rendered page and its result
	// kept as the page content.
	Format func(p Page) string

	// Fail, when set, is consulted before every render or remove.
	Fail func(op string, p Page) error
}

// NewMemorySink returns an empty sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{pages: map[string]Page{}, contents: map[string]string{}}
}

func (s *MemorySink) Reset(_ context.Context, cfg *config.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
	s.cfg = cfg
	return nil
}

func (s *MemorySink) Render(_ context.Context, p Page) error {
	if s.Fail != nil {
		if err := s.Fail("render", p); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[p.OutputPath()] = p
	if s.Format != nil {
		s.contents[p.OutputPath()] = s.Format(p)
	}
	s.ops = append(s.ops, SinkOp{Op: "render", Path: p.OutputPath(), Kind: p.Kind()})
	return nil
}

func (s *MemorySink) Remove(_ context.Context, p Page) error {
	if s.Fail != nil {
		if err := s.Fail("remove", p); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	path := p.OutputPath()
	delete(s.pages, path)
	delete(s.contents, path)
	if p.Kind() == KindTag {
		// tag output is a whole directory
		dir := TagDir(p.(*TagPage).Tag.Key) + "/"
		for k := range s.pages {
			if strings.HasPrefix(k, dir) {
				delete(s.pages, k)
				delete(s.contents, k)
			}
		}
	}
	s.ops = append(s.ops, SinkOp{Op: "remove", Path: path, Kind: p.Kind()})
	return nil
}

// Page returns the page last rendered at path.
func (s *MemorySink) Page(path string) (Page, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pages[path]
	return p, ok
}

// Content returns the formatted content last rendered at path.
func (s *MemorySink) Content(path string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contents[path]
	return c, ok
}

// Contents returns a copy of every formatted page keyed by output path.
func (s *MemorySink) Contents() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.contents)
}

// Config returns the config passed to the last Reset.
func (s *MemorySink) Config() *config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Paths returns every output path currently present, sorted.
func (s *MemorySink) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.pages))
}

// Ops returns the recorded calls.
func (s *MemorySink) Ops() []SinkOp {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.ops)
}

// ClearOps forgets the recorded calls.
func (s *MemorySink) ClearOps() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = nil
}

// Resets returns how often Reset was called.
func (s *MemorySink) Resets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resets
}

var _ Sink = (*MemorySink)(nil)
