package site

import (
	"slices"

	"github.com/jlrickert/letterpress/pkg/post"
)

// NoPage marks a missing neighbour link on a timeline page.
const NoPage = -1

// TimelinePage is one fixed size page of the reverse chronological timeline.
// Page 0 is the site root.
type TimelinePage struct {
	Index int
	Posts []*post.Post

	// Newer is the index of the page holding more recent posts, or NoPage.
	Newer int
	// Older is the index of the page holding older posts, or NoPage.
	Older int
}

// TimelineDelta lists the pages whose content or links changed and the
// page indexes that no longer exist.
type TimelineDelta struct {
	Dirty   []int
	Removed []int
}

// Empty reports whether the delta carries no change.
func (d TimelineDelta) Empty() bool {
	return len(d.Dirty) == 0 && len(d.Removed) == 0
}

// TimelineIndex paginates every live post, most recent first, into pages
// of a fixed size. Page k holds ranks [k*size, k*size+size).
//
// Single post changes re-paginate from the page holding the changed rank
// onward, so the result is always identical to a Rebuild.
type TimelineIndex struct {
	pageSize int
	posts    []*post.Post
	pages    []*TimelinePage
}

// NewTimelineIndex returns an empty timeline with the given page size.
// Sizes below one are treated as one.
func NewTimelineIndex(pageSize int) *TimelineIndex {
	return &TimelineIndex{pageSize: max(pageSize, 1)}
}

// PageSize returns the number of posts per page.
func (ti *TimelineIndex) PageSize() int { return ti.pageSize }

// Rebuild discards all pages and paginates posts from scratch. Every
// resulting page is reported dirty and trailing pages that disappeared
// are reported removed.
func (ti *TimelineIndex) Rebuild(posts []*post.Post, pageSize int) TimelineDelta {
	oldCount := len(ti.pages)
	ti.pageSize = max(pageSize, 1)
	ti.posts = slices.Clone(posts)
	sortDescending(ti.posts)
	ti.pages = nil
	return ti.repaginate(0, oldCount, true)
}

// OnAdd inserts p at its rank and re-paginates from the affected page.
func (ti *TimelineIndex) OnAdd(p *post.Post) TimelineDelta {
	oldCount := len(ti.pages)
	var r int
	ti.posts, r = insertSorted(ti.posts, p, post.CompareDesc)
	return ti.repaginate(r/ti.pageSize, oldCount, false)
}

// OnRemove removes p and re-paginates from the affected page. Removing a
// post that is not on the timeline is a no-op.
func (ti *TimelineIndex) OnRemove(p *post.Post) TimelineDelta {
	oldCount := len(ti.pages)
	var r int
	ti.posts, r = removeSorted(ti.posts, p, post.CompareDesc)
	if r < 0 {
		return TimelineDelta{}
	}
	return ti.repaginate(r/ti.pageSize, oldCount, false)
}

// repaginate rebuilds pages from start to the end. When the page count
// changes the page that used to be, or now is, last gets its Older link
// updated, so start is lowered to cover it.
func (ti *TimelineIndex) repaginate(start, oldCount int, all bool) TimelineDelta {
	n := len(ti.posts)
	newCount := (n + ti.pageSize - 1) / ti.pageSize

	if all {
		start = 0
	} else if newCount != oldCount {
		start = min(start, min(oldCount, newCount)-1)
	}
	start = max(start, 0)

	pages := make([]*TimelinePage, newCount)
	copy(pages, ti.pages[:min(start, len(ti.pages))])

	var delta TimelineDelta
	for k := start; k < newCount; k++ {
		lo := k * ti.pageSize
		hi := min(lo+ti.pageSize, n)
		pg := &TimelinePage{
			Index: k,
			Posts: slices.Clone(ti.posts[lo:hi]),
			Newer: NoPage,
			Older: NoPage,
		}
		if k > 0 {
			pg.Newer = k - 1
		}
		if k+1 < newCount {
			pg.Older = k + 1
		}
		pages[k] = pg
		delta.Dirty = append(delta.Dirty, k)
	}
	for k := newCount; k < oldCount; k++ {
		delta.Removed = append(delta.Removed, k)
	}
	ti.pages = pages
	return delta
}

// Len returns the number of pages.
func (ti *TimelineIndex) Len() int {
	if ti == nil {
		return 0
	}
	return len(ti.pages)
}

// Page returns page k.
func (ti *TimelineIndex) Page(k int) (*TimelinePage, bool) {
	if ti == nil || k < 0 || k >= len(ti.pages) {
		return nil, false
	}
	return ti.pages[k], true
}

// Pages returns all pages, root first.
func (ti *TimelineIndex) Pages() []*TimelinePage {
	if ti == nil {
		return nil
	}
	return slices.Clone(ti.pages)
}

// Posts returns every post, most recent first.
func (ti *TimelineIndex) Posts() []*post.Post {
	if ti == nil {
		return nil
	}
	return slices.Clone(ti.posts)
}

// PageOf returns the index of the page holding p, or NoPage.
func (ti *TimelineIndex) PageOf(p *post.Post) int {
	i, found := slices.BinarySearchFunc(ti.posts, p, post.CompareDesc)
	if !found || ti.posts[i] != p {
		return NoPage
	}
	return i / ti.pageSize
}
