package site

import (
	"maps"
	"slices"

	"github.com/jlrickert/letterpress/pkg/post"
)

// PostStore is the authoritative set of live posts keyed by source path.
//
// PostStore does not perform internal synchronization; the engine is its
// only writer.
type PostStore struct {
	posts map[string]*post.Post
}

// NewPostStore returns an empty store.
func NewPostStore() *PostStore {
	return &PostStore{posts: map[string]*post.Post{}}
}

// Add stores p under path, replacing and returning any previous post.
func (s *PostStore) Add(path string, p *post.Post) *post.Post {
	if s.posts == nil {
		s.posts = map[string]*post.Post{}
	}
	prev := s.posts[path]
	s.posts[path] = p
	return prev
}

// Remove deletes and returns the post at path.
func (s *PostStore) Remove(path string) (*post.Post, bool) {
	p, ok := s.posts[path]
	if !ok {
		return nil, false
	}
	delete(s.posts, path)
	return p, true
}

// Get returns the post stored at path.
func (s *PostStore) Get(path string) (*post.Post, bool) {
	if s == nil {
		return nil, false
	}
	p, ok := s.posts[path]
	return p, ok
}

// Len returns the number of stored posts.
func (s *PostStore) Len() int {
	if s == nil {
		return 0
	}
	return len(s.posts)
}

// All returns every post in canonical ascending order.
func (s *PostStore) All() []*post.Post {
	if s == nil {
		return nil
	}
	out := slices.Collect(maps.Values(s.posts))
	sortAscending(out)
	return out
}

// Paths returns the stored source paths, sorted.
func (s *PostStore) Paths() []string {
	if s == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(s.posts))
}
