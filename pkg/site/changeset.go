package site

import "slices"

// ChangeSet collects the pages one engine step must render or remove,
// keyed by output path. A render of a path cancels a pending removal of
// the same path, and the last render queued for a path wins.
type ChangeSet struct {
	renders map[string]Page
	removes map[string]Page
	order   []string
}

// NewChangeSet returns an empty change set.
func NewChangeSet() *ChangeSet {
	return &ChangeSet{
		renders: map[string]Page{},
		removes: map[string]Page{},
	}
}

// Render queues p for rendering.
func (cs *ChangeSet) Render(p Page) {
	path := p.OutputPath()
	delete(cs.removes, path)
	if _, ok := cs.renders[path]; !ok {
		cs.order = append(cs.order, path)
	}
	cs.renders[path] = p
}

// Remove queues p's output for removal unless the same path is rendered.
func (cs *ChangeSet) Remove(p Page) {
	path := p.OutputPath()
	if _, ok := cs.renders[path]; ok {
		return
	}
	if _, ok := cs.removes[path]; !ok {
		cs.order = append(cs.order, path)
	}
	cs.removes[path] = p
}

// Renders returns queued renders in insertion order.
func (cs *ChangeSet) Renders() []Page {
	out := make([]Page, 0, len(cs.renders))
	for _, path := range cs.order {
		if p, ok := cs.renders[path]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Removes returns queued removals, longest output path first.
func (cs *ChangeSet) Removes() []Page {
	out := make([]Page, 0, len(cs.removes))
	for _, path := range cs.order {
		if p, ok := cs.removes[path]; ok {
			out = append(out, p)
		}
	}
	slices.SortStableFunc(out, func(a, b Page) int {
		pa, pb := a.OutputPath(), b.OutputPath()
		if len(pa) != len(pb) {
			return len(pb) - len(pa)
		}
		return 0
	})
	return out
}

// Len returns the number of queued operations.
func (cs *ChangeSet) Len() int {
	return len(cs.renders) + len(cs.removes)
}

// RenderPaths returns the output paths queued for rendering, sorted.
func (cs *ChangeSet) RenderPaths() []string {
	out := make([]string, 0, len(cs.renders))
	for path := range cs.renders {
		out = append(out, path)
	}
	slices.Sort(out)
	return out
}

// RemovePaths returns the output paths queued for removal, sorted.
func (cs *ChangeSet) RemovePaths() []string {
	out := make([]string, 0, len(cs.removes))
	for path := range cs.removes {
		out = append(out, path)
	}
	slices.Sort(out)
	return out
}
