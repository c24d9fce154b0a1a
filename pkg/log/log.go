package log

import (
	"context"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"log/slog"

	"github.com/jlrickert/cli-toolkit/mylog"
)

// LoggerConfig is a minimal, convenient set of options.
type LoggerConfig struct {
	Version string

	// If Out is nil, stderr is used.
	Out io.Writer

	// File, when set, additionally receives every entry through a size
	// rotating writer.
	File        string
	MaxBytes    int64
	MaxBackups  int
	Level       slog.Level
	JSON        bool // true => JSON output, false => text
	AddSource   bool
	DisableTerm bool // write only to File
}

// NewLogger creates a configured *slog.Logger and a shutdown func that
// closes the log file, if any.
func NewLogger(cfg LoggerConfig) (*slog.Logger, func() error, error) {
	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}

	shutdown := func() error { return nil }
	if cfg.File != "" {
		rw, err := NewRotatingWriter(cfg.File, cfg.MaxBytes, cfg.MaxBackups)
		if err != nil {
			return nil, nil, err
		}
		if cfg.DisableTerm {
			out = rw
		} else {
			out = io.MultiWriter(out, rw)
		}
		shutdown = rw.Close
	}

	logger := mylog.NewLogger(mylog.LoggerConfig{
		Version: cfg.Version,
		Out:     out,
		Level:   cfg.Level,
		JSON:    cfg.JSON,
		Source:  cfg.AddSource,
	})
	return logger, shutdown, nil
}

// ParseLevel maps level names such as "debug" or "warn" to slog levels.
func ParseLevel(s string) slog.Level {
	return mylog.ParseLevel(s)
}

// NewNopLogger returns a logger that discards all log events.
func NewNopLogger() *slog.Logger {
	return mylog.NewDiscardLogger()
}

///////////////////////////////////////////////////////////////////////////////
// Context helpers
///////////////////////////////////////////////////////////////////////////////

type ctxKeyType struct{}

var ctxKey ctxKeyType

// ContextWithLogger stores lg on ctx.
func ContextWithLogger(ctx context.Context, lg *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey, lg)
}

// FromContext returns the logger stored on ctx, or a discarding logger.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return mylog.Default()
	}
	if v := ctx.Value(ctxKey); v != nil {
		if lg, ok := v.(*slog.Logger); ok && lg != nil {
			return lg
		}
	}
	return mylog.Default()
}

///////////////////////////////////////////////////////////////////////////////
// Test handler (simple, thread-safe)
///////////////////////////////////////////////////////////////////////////////

type LoggedEntry struct {
	Time  time.Time
	Level slog.Level
	Msg   string
	Attrs map[string]any
}

// testingT is a tiny subset of *testing.T used for optional logging.
type testingT interface {
	Logf(format string, args ...any)
}

// TestHandler captures structured entries for assertions. Loggers derived
// with With share the same entry list.
type TestHandler struct {
	mu      sync.Mutex
	Entries []LoggedEntry
	T       testingT
}

func NewTestHandler(t testingT) *TestHandler {
	return &TestHandler{T: t}
}

func (h *TestHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (h *TestHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.handle(r, nil)
}

func (h *TestHandler) handle(r slog.Record, bound []slog.Attr) error {
	e := LoggedEntry{
		Time:  r.Time,
		Level: r.Level,
		Msg:   r.Message,
		Attrs: map[string]any{},
	}
	for _, a := range bound {
		e.Attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		e.Attrs[a.Key] = a.Value.Any()
		return true
	})

	h.mu.Lock()
	h.Entries = append(h.Entries, e)
	h.mu.Unlock()

	if h.T != nil {
		h.T.Logf("LOG %s %v %v", e.Msg, e.Level, e.Attrs)
	}
	return nil
}

func (h *TestHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &boundHandler{root: h, attrs: attrs}
}

func (h *TestHandler) WithGroup(_ string) slog.Handler { return h }

// boundHandler carries attrs added with Logger.With and forwards records
// to the root TestHandler.
type boundHandler struct {
	root  *TestHandler
	attrs []slog.Attr
}

func (b *boundHandler) Enabled(context.Context, slog.Level) bool { return true }

func (b *boundHandler) Handle(_ context.Context, r slog.Record) error {
	return b.root.handle(r, b.attrs)
}

func (b *boundHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := append(append([]slog.Attr(nil), b.attrs...), attrs...)
	return &boundHandler{root: b.root, attrs: merged}
}

func (b *boundHandler) WithGroup(_ string) slog.Handler { return b }

// NewTestLogger returns a logger that writes to a TestHandler (and the handler).
func NewTestLogger(t testingT, level slog.Level) (*slog.Logger, *TestHandler) {
	th := NewTestHandler(t)
	logger := slog.New(th).With(slog.String("test", "true"))
	return logger, th
}

var (
	_ slog.Handler = (*TestHandler)(nil)
	_ slog.Handler = (*boundHandler)(nil)
)

///////////////////////////////////////////////////////////////////////////////
// Small helpers for tests
///////////////////////////////////////////////////////////////////////////////

// FindEntries copies entries that match pred.
func FindEntries(th *TestHandler, pred func(LoggedEntry) bool) []LoggedEntry {
	th.mu.Lock()
	entries := append([]LoggedEntry(nil), th.Entries...)
	th.mu.Unlock()

	out := make([]LoggedEntry, 0)
	for _, e := range entries {
		if pred(e) {
			out = append(out, e)
		}
	}
	return out
}

// HasMsg returns a predicate matching entries with the given level and
// message.
func HasMsg(level slog.Level, msg string) func(LoggedEntry) bool {
	return func(e LoggedEntry) bool {
		return e.Level == level && e.Msg == msg
	}
}

// RequireEntry fails the test if a matching entry isn't found within timeout.
func RequireEntry(t *testing.T, th *TestHandler, pred func(LoggedEntry) bool, timeout time.Duration) LoggedEntry {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		th.mu.Lock()
		for _, e := range th.Entries {
			if pred(e) {
				out := e
				th.mu.Unlock()
				return out
			}
		}
		th.mu.Unlock()
		if time.Now().After(deadline) {
			th.mu.Lock()
			entries := append([]LoggedEntry(nil), th.Entries...)
			th.mu.Unlock()
			t.Fatalf("required log entry not found in %s; captured %d entries: %#v", timeout, len(entries), entries)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
