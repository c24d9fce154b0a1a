package site

import (
	"maps"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"github.com/jlrickert/letterpress/pkg/config"
	"github.com/jlrickert/letterpress/pkg/post"
)

// Tag is the set of live posts carrying one tag, most recent first.
type Tag struct {
	// Key is the tag identity under the index's TagIdentity policy.
	Key string

	// Name is the display name: the spelling used by the oldest post
	// carrying the tag.
	Name string

	Posts []*post.Post
}

// Len returns the number of posts carrying the tag.
func (t *Tag) Len() int { return len(t.Posts) }

// Contains reports whether p is a member of the tag by identity.
func (t *Tag) Contains(p *post.Post) bool {
	return slices.Contains(t.Posts, p)
}

// TagIndex maps tag keys to their posts. One identity policy drives
// grouping, equality and ordering.
//
// Note: TagIndex does not perform internal synchronization.
type TagIndex struct {
	identity config.TagIdentity
	fold     cases.Caser
	tags     map[string]*Tag
}

// NewTagIndex returns an empty index using identity.
func NewTagIndex(identity config.TagIdentity) *TagIndex {
	if identity == "" {
		identity = config.TagExact
	}
	return &TagIndex{
		identity: identity,
		fold:     cases.Fold(),
		tags:     map[string]*Tag{},
	}
}

// Identity returns the policy the index was built with.
func (idx *TagIndex) Identity() config.TagIdentity { return idx.identity }

// Key returns the identity key of name.
func (idx *TagIndex) Key(name string) string {
	return TagKey(idx.identity, name)
}

// TagKey returns the key name is grouped under with the given identity
// policy. An empty policy is exact.
func TagKey(identity config.TagIdentity, name string) string {
	if identity == config.TagFold {
		return cases.Fold().String(name)
	}
	return name
}

// postKeys returns the distinct tag keys of p in declaration order.
func (idx *TagIndex) postKeys(p *post.Post) []string {
	keys := make([]string, 0, len(p.Tags))
	for _, name := range p.Tags {
		k := idx.Key(name)
		if !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	return keys
}

// Rebuild replaces the index contents with tags derived from posts.
func (idx *TagIndex) Rebuild(posts []*post.Post) {
	fresh := map[string]*Tag{}
	for _, p := range posts {
		for _, k := range idx.postKeys(p) {
			t, ok := fresh[k]
			if !ok {
				t = &Tag{Key: k}
				fresh[k] = t
			}
			t.Posts = append(t.Posts, p)
		}
	}
	for _, t := range fresh {
		sortDescending(t.Posts)
		idx.refreshName(t)
	}
	idx.tags = fresh
}

// OnAdd inserts p into each of its tags, creating tags as needed, and
// returns the touched tags.
func (idx *TagIndex) OnAdd(p *post.Post) []*Tag {
	if idx.tags == nil {
		idx.tags = map[string]*Tag{}
	}
	var touched []*Tag
	for _, k := range idx.postKeys(p) {
		t, ok := idx.tags[k]
		if !ok {
			t = &Tag{Key: k}
			idx.tags[k] = t
		}
		t.Posts, _ = insertSorted(t.Posts, p, post.CompareDesc)
		idx.refreshName(t)
		touched = append(touched, t)
	}
	return touched
}

// OnRemove removes p from each of its tags. Tags left empty are deleted
// from the index and reported in deleted; the others are reported in
// touched. Removing a post that is not indexed is a no-op.
func (idx *TagIndex) OnRemove(p *post.Post) (touched, deleted []*Tag) {
	for _, k := range idx.postKeys(p) {
		t, ok := idx.tags[k]
		if !ok {
			continue
		}
		var at int
		t.Posts, at = removeSorted(t.Posts, p, post.CompareDesc)
		if at < 0 {
			continue
		}
		if len(t.Posts) == 0 {
			delete(idx.tags, k)
			deleted = append(deleted, t)
			continue
		}
		idx.refreshName(t)
		touched = append(touched, t)
	}
	return touched, deleted
}

// refreshName recomputes the display name from the oldest member post.
func (idx *TagIndex) refreshName(t *Tag) {
	if len(t.Posts) == 0 {
		return
	}
	oldest := t.Posts[len(t.Posts)-1]
	for _, name := range oldest.Tags {
		if idx.Key(name) == t.Key {
			t.Name = name
			return
		}
	}
	t.Name = t.Key
}

// Get returns the tag identified by name under the index policy.
func (idx *TagIndex) Get(name string) (*Tag, bool) {
	if idx == nil {
		return nil, false
	}
	t, ok := idx.tags[idx.Key(name)]
	return t, ok
}

// Len returns the number of tags.
func (idx *TagIndex) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.tags)
}

// Tags returns every tag ordered by case folded name, then by key.
func (idx *TagIndex) Tags() []*Tag {
	if idx == nil {
		return nil
	}
	out := slices.Collect(maps.Values(idx.tags))
	slices.SortFunc(out, func(a, b *Tag) int {
		return idx.compare(a, b)
	})
	return out
}

func (idx *TagIndex) compare(a, b *Tag) int {
	if c := strings.Compare(idx.fold.String(a.Name), idx.fold.String(b.Name)); c != 0 {
		return c
	}
	return strings.Compare(a.Key, b.Key)
}
