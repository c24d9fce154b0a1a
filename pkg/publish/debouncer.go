package publish

import (
	"slices"
	"strings"
	"sync"
	"time"
)

// Op is a coalesced filesystem operation.
type Op int

const (
	OpCreate Op = iota
	OpWrite
	OpRemove
)

func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Change is one debounced change to a path relative to the published
// directory.
type Change struct {
	Path string
	Op   Op
}

// Debouncer coalesces bursts of changes per path. Changes seen within the
// window are merged:
//   - create then write stays a create
//   - create then remove cancels out
//   - remove then create becomes a write
//   - anything else keeps the latest operation
type Debouncer struct {
	window time.Duration

	mu      sync.Mutex
	pending map[string]Op
	timer   *time.Timer
	stopped bool
	output  chan []Change
}

// NewDebouncer returns a debouncer emitting batches window after the last
// change.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: map[string]Op{},
		output:  make(chan []Change, 4),
	}
}

// Add records a change.
func (d *Debouncer) Add(c Change) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if prev, ok := d.pending[c.Path]; ok {
		op, keep := coalesce(prev, c.Op)
		if !keep {
			delete(d.pending, c.Path)
		} else {
			d.pending[c.Path] = op
		}
	} else {
		d.pending[c.Path] = c.Op
	}
	d.scheduleLocked(d.window)
}

func coalesce(prev, next Op) (Op, bool) {
	switch {
	case prev == OpCreate && next == OpWrite:
		return OpCreate, true
	case prev == OpCreate && next == OpRemove:
		return 0, false
	case prev == OpRemove && next == OpCreate:
		return OpWrite, true
	default:
		return next, true
	}
}

func (d *Debouncer) scheduleLocked(after time.Duration) {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(after, d.flush)
}

// flush emits pending changes sorted by path. When the consumer is behind
// the changes stay pending and the flush is retried.
func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || len(d.pending) == 0 {
		return
	}
	batch := make([]Change, 0, len(d.pending))
	for path, op := range d.pending {
		batch = append(batch, Change{Path: path, Op: op})
	}
	slices.SortFunc(batch, func(a, b Change) int { return strings.Compare(a.Path, b.Path) })
	select {
	case d.output <- batch:
		d.pending = map[string]Op{}
	default:
		d.scheduleLocked(d.window)
	}
}

// Output returns the channel of batches. It is closed by Stop.
func (d *Debouncer) Output() <-chan []Change { return d.output }

// Stop discards pending changes and closes the output. Safe to call more
// than once.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}
