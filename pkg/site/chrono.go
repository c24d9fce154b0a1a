package site

import (
	"slices"

	"github.com/jlrickert/letterpress/pkg/post"
)

// sortAscending sorts posts in canonical order in place.
func sortAscending(posts []*post.Post) {
	slices.SortFunc(posts, post.Compare)
}

// sortDescending sorts posts most recent first in place.
func sortDescending(posts []*post.Post) {
	slices.SortFunc(posts, post.CompareDesc)
}

// insertSorted inserts p into posts, which must already be ordered by cmp,
// and returns the grown slice and the insert position. A post with the same
// source that is already present is left alone and its position returned.
func insertSorted(posts []*post.Post, p *post.Post, cmp func(a, b *post.Post) int) ([]*post.Post, int) {
	i, found := slices.BinarySearchFunc(posts, p, cmp)
	if found && posts[i].Source == p.Source {
		return posts, i
	}
	return slices.Insert(posts, i, p), i
}

// removeSorted removes p from posts, which must be ordered by cmp. It is a
// no-op returning -1 when p is absent.
func removeSorted(posts []*post.Post, p *post.Post, cmp func(a, b *post.Post) int) ([]*post.Post, int) {
	i, found := slices.BinarySearchFunc(posts, p, cmp)
	if !found || posts[i] != p {
		return posts, -1
	}
	return slices.Delete(posts, i, i+1), i
}
