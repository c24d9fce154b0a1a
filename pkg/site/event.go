package site

import "fmt"

// EventKind tags the variant of an Event.
type EventKind int

const (
	// PostAdded carries the raw document of a new post.
	PostAdded EventKind = iota + 1
	// PostChanged carries the raw document of an edited post. It is
	// handled exactly like PostAdded.
	PostChanged
	// PostDeleted names a post whose document disappeared.
	PostDeleted
	// ConfigChanged forces a full rebuild with a freshly loaded config.
	ConfigChanged
	// TemplateChanged forces a full rebuild with the current config.
	TemplateChanged
	// ResourceChanged names a non-post file or directory to mirror into
	// the site directory.
	ResourceChanged
)

func (k EventKind) String() string {
	switch k {
	case PostAdded:
		return "post-added"
	case PostChanged:
		return "post-changed"
	case PostDeleted:
		return "post-deleted"
	case ConfigChanged:
		return "config-changed"
	case TemplateChanged:
		return "template-changed"
	case ResourceChanged:
		return "resource-changed"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is a single change delivered to the engine.
type Event struct {
	Kind EventKind

	// Path is the source path of the post or resource. Posts are keyed by
	// it in the store.
	Path string

	// Raw is the document content for PostAdded and PostChanged.
	Raw []byte

	// IsDir and Removed describe a ResourceChanged event.
	IsDir   bool
	Removed bool
}

func NewPostAdded(path string, raw []byte) Event {
	return Event{Kind: PostAdded, Path: path, Raw: raw}
}

func NewPostChanged(path string, raw []byte) Event {
	return Event{Kind: PostChanged, Path: path, Raw: raw}
}

func NewPostDeleted(path string) Event {
	return Event{Kind: PostDeleted, Path: path}
}

func NewConfigChanged() Event { return Event{Kind: ConfigChanged} }

func NewTemplateChanged(path string) Event {
	return Event{Kind: TemplateChanged, Path: path}
}

func NewResourceChanged(path string, isDir, removed bool) Event {
	return Event{Kind: ResourceChanged, Path: path, IsDir: isDir, Removed: removed}
}

// Rebuilds reports whether the event forces a full rebuild.
func (e Event) Rebuilds() bool {
	return e.Kind == ConfigChanged || e.Kind == TemplateChanged
}

func (e Event) String() string {
	if e.Path == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s %s", e.Kind, e.Path)
}
