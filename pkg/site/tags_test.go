package site

import (
	"testing"

	"github.com/jlrickert/letterpress/pkg/config"
	"github.com/jlrickert/letterpress/pkg/post"
	"github.com/stretchr/testify/require"
)

func TestPostStore_AddReplaceRemove(t *testing.T) {
	t.Parallel()
	s := NewPostStore()
	a := mkPost("a.md", "2024-01-02")
	b := mkPost("b.md", "2024-01-01")

	require.Nil(t, s.Add("a.md", a))
	require.Nil(t, s.Add("b.md", b))
	require.Equal(t, []string{"b.md", "a.md"}, sources(s.All()))
	require.Equal(t, []string{"a.md", "b.md"}, s.Paths())

	a2 := mkPost("a.md", "2023-12-31")
	require.Same(t, a, s.Add("a.md", a2))
	require.Equal(t, 2, s.Len())

	got, ok := s.Remove("a.md")
	require.True(t, ok)
	require.Same(t, a2, got)
	_, ok = s.Remove("a.md")
	require.False(t, ok)

	var nilStore *PostStore
	require.Zero(t, nilStore.Len())
	require.Nil(t, nilStore.All())
}

func TestTagIndex_RebuildGroupsNewestFirst(t *testing.T) {
	t.Parallel()
	idx := NewTagIndex(config.TagExact)
	a := mkPost("a.md", "2024-01-01", "go", "web")
	b := mkPost("b.md", "2024-02-01", "go")
	c := mkPost("c.md", "2024-03-01", "rust")
	idx.Rebuild([]*post.Post{a, b, c})

	require.Equal(t, 3, idx.Len())
	goTag, ok := idx.Get("go")
	require.True(t, ok)
	require.Equal(t, []string{"b.md", "a.md"}, sources(goTag.Posts))

	var names []string
	for _, tag := range idx.Tags() {
		names = append(names, tag.Name)
	}
	require.Equal(t, []string{"go", "rust", "web"}, names)
}

func TestTagIndex_ExactKeepsCaseVariantsApart(t *testing.T) {
	t.Parallel()
	idx := NewTagIndex(config.TagExact)
	upper := mkPost("a.md", "2024-01-01", "Math")
	lower := mkPost("b.md", "2024-01-02", "math")
	idx.OnAdd(upper)
	idx.OnAdd(lower)

	require.Equal(t, 2, idx.Len())
	m1, ok := idx.Get("Math")
	require.True(t, ok)
	require.Equal(t, []string{"a.md"}, sources(m1.Posts))
	m2, ok := idx.Get("math")
	require.True(t, ok)
	require.Equal(t, []string{"b.md"}, sources(m2.Posts))
	require.NotEqual(t, TagDir(m1.Key), TagDir(m2.Key))
}

func TestTagIndex_FoldMergesCaseVariants(t *testing.T) {
	t.Parallel()
	idx := NewTagIndex(config.TagFold)
	newer := mkPost("b.md", "2024-01-02", "math")
	older := mkPost("a.md", "2024-01-01", "Math")
	idx.OnAdd(newer)
	tag, ok := idx.Get("MATH")
	require.True(t, ok)
	require.Equal(t, "math", tag.Name)

	idx.OnAdd(older)
	require.Equal(t, 1, idx.Len())
	require.Equal(t, "Math", tag.Name, "display name comes from the oldest post")
	require.Equal(t, []string{"b.md", "a.md"}, sources(tag.Posts))

	touched, deleted := idx.OnRemove(older)
	require.Empty(t, deleted)
	require.Len(t, touched, 1)
	require.Equal(t, "math", tag.Name)
}

func TestTagIndex_DuplicateTagOnPostCountsOnce(t *testing.T) {
	t.Parallel()
	idx := NewTagIndex(config.TagFold)
	p := mkPost("a.md", "2024-01-01", "Go", "go")
	touched := idx.OnAdd(p)
	require.Len(t, touched, 1)
	tag, _ := idx.Get("go")
	require.Equal(t, 1, tag.Len())
}

func TestTagIndex_RemoveDeletesEmptyTags(t *testing.T) {
	t.Parallel()
	idx := NewTagIndex(config.TagExact)
	a := mkPost("a.md", "2024-01-01", "go", "solo")
	b := mkPost("b.md", "2024-01-02", "go")
	idx.OnAdd(a)
	idx.OnAdd(b)

	touched, deleted := idx.OnRemove(a)
	require.Len(t, touched, 1)
	require.Equal(t, "go", touched[0].Key)
	require.Len(t, deleted, 1)
	require.Equal(t, "solo", deleted[0].Key)
	_, ok := idx.Get("solo")
	require.False(t, ok)

	// removing again is a no-op
	touched, deleted = idx.OnRemove(a)
	require.Empty(t, touched)
	require.Empty(t, deleted)
}

func TestTagIndex_Membership(t *testing.T) {
	t.Parallel()
	idx := NewTagIndex(config.TagExact)
	posts := []*post.Post{
		mkPost("a.md", "2024-01-01", "x", "y"),
		mkPost("b.md", "2024-01-01", "y"),
		mkPost("c.md", "2024-01-03"),
	}
	for _, p := range posts {
		idx.OnAdd(p)
	}
	for _, tag := range idx.Tags() {
		for _, p := range posts {
			require.Equal(t, p.HasTag(tag.Key), tag.Contains(p), "tag %s post %s", tag.Key, p.Source)
		}
	}
}

func TestChangeSet_RenderCancelsRemove(t *testing.T) {
	t.Parallel()
	cs := NewChangeSet()
	tag := &Tag{Key: "go"}
	cs.Remove(&TagPage{Tag: tag})
	cs.Render(&TagPage{Tag: tag})
	cs.Remove(&TagPage{Tag: tag})
	cs.Remove(&TimelinePage{Index: 3})
	cs.Remove(&NotFoundPage{})

	require.Equal(t, []string{"tags/go/index.html"}, cs.RenderPaths())
	require.Equal(t, []string{"404.html", "archive/3/index.html"}, cs.RemovePaths())
	require.Equal(t, 3, cs.Len())

	removes := cs.Removes()
	require.Equal(t, "archive/3/index.html", removes[0].OutputPath())
}

func TestChangeSet_LastRenderWins(t *testing.T) {
	t.Parallel()
	cs := NewChangeSet()
	first := &TimelinePage{Index: 0}
	second := &TimelinePage{Index: 0, Newer: NoPage}
	cs.Render(first)
	cs.Render(&FeedPage{})
	cs.Render(second)

	renders := cs.Renders()
	require.Len(t, renders, 2)
	require.Same(t, second, renders[0])
	require.Equal(t, "feed.xml", renders[1].OutputPath())
}

func TestTagSegment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key      string
		expected string
	}{
		{key: "go", expected: "go"},
		{key: "v1.2", expected: "v1.2"},
		{key: "数学", expected: "数学"},
		{key: "c++", expected: "c++"},
		{key: ".", expected: "%2E"},
		{key: "..", expected: "%2E."},
		{key: ".hidden", expected: "%2Ehidden"},
		{key: "a/b", expected: "a%2Fb"},
		{key: `a\b`, expected: "a%5Cb"},
		{key: "50%", expected: "50%25"},
		{key: "tab\there", expected: "tab%09here"},
		{key: "", expected: "%00"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			require.Equal(t, tt.expected, TagSegment(tt.key))
			require.Equal(t, "tags/"+tt.expected, TagDir(tt.key))
		})
	}

	// Escaping keeps keys apart.
	require.NotEqual(t, TagSegment("a/b"), TagSegment("a%2Fb"))
	require.NotEqual(t, TagSegment(".x"), TagSegment("%2Ex"))
}

func TestTagKey(t *testing.T) {
	t.Parallel()
	require.Equal(t, "Math", TagKey(config.TagExact, "Math"))
	require.Equal(t, "Math", TagKey("", "Math"))
	require.Equal(t, "math", TagKey(config.TagFold, "MATH"))
	require.Equal(t, TagKey(config.TagFold, "Straße"), TagKey(config.TagFold, "STRASSE"))
}
