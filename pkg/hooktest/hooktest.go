// Package hooktest provides helpers for testing components built on statesync
// hooks.
//
// Mount renders a component function once and re-renders it on demand:
//
//	h := hooktest.Mount(t, func(o *reactive.Owner) {
//	    theme = cookie.UseState(o, jar, "theme", "light", cookie.StateOptions{})
//	})
//	h.Rerender()
//	h.Unmount()
//
// Eventually polls a condition for asynchronous hooks, and CaptureLogs returns
// a logger whose records can be inspected.
package hooktest

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vango-dev/statesync/pkg/reactive"
)

// DefaultTimeout bounds Eventually when no timeout is given.
const DefaultTimeout = 2 * time.Second

// Harness drives renders of one component instance.
type Harness struct {
	owner  *reactive.Owner
	render func(o *reactive.Owner)

	mu      sync.Mutex
	renders atomic.Int64
}

// Mount creates a root owner, renders fn once and unmounts on test cleanup.
func Mount(t testing.TB, fn func(o *reactive.Owner), opts ...reactive.OwnerOption) *Harness {
	t.Helper()
	h := &Harness{
		owner:  reactive.NewOwner(nil, opts...),
		render: fn,
	}
	t.Cleanup(h.Unmount)
	h.Rerender()
	return h
}

// Owner returns the component instance's owner.
func (h *Harness) Owner() *reactive.Owner {
	return h.owner
}

// Rerender runs the component function again.
func (h *Harness) Rerender() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.owner.Render(h.render)
	h.renders.Add(1)
}

// Renders returns how many renders have completed.
func (h *Harness) Renders() int {
	return int(h.renders.Load())
}

// Unmount disposes the owner. It is safe to call more than once.
func (h *Harness) Unmount() {
	h.owner.Dispose()
}

// Eventually fails the test if cond does not return true within timeout
// (DefaultTimeout when zero).
func Eventually(t testing.TB, cond func() bool, timeout time.Duration, msg string) {
	t.Helper()
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %v: %s", timeout, msg)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// Never fails the test if cond becomes true during d.
func Never(t testing.TB, cond func() bool, d time.Duration, msg string) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			t.Fatalf("condition unexpectedly met: %s", msg)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// LogRecord is a captured log record.
type LogRecord struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// Logs collects records written through a captured logger.
type Logs struct {
	mu      sync.Mutex
	records []LogRecord
}

// CaptureLogs returns a logger that records into the returned Logs.
func CaptureLogs() (*slog.Logger, *Logs) {
	logs := &Logs{}
	return slog.New(&captureHandler{logs: logs}), logs
}

// Records returns a copy of the captured records.
func (l *Logs) Records() []LogRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]LogRecord(nil), l.records...)
}

// Count returns how many records were logged at level.
func (l *Logs) Count(level slog.Level) int {
	n := 0
	for _, r := range l.Records() {
		if r.Level == level {
			n++
		}
	}
	return n
}

// Has reports whether a record with message was logged at level.
func (l *Logs) Has(level slog.Level, message string) bool {
	for _, r := range l.Records() {
		if r.Level == level && r.Message == message {
			return true
		}
	}
	return false
}

func (l *Logs) add(r LogRecord) {
	l.mu.Lock()
	l.records = append(l.records, r)
	l.mu.Unlock()
}

type captureHandler struct {
	logs  *Logs
	attrs []slog.Attr
}

func (h *captureHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	rec := LogRecord{Level: r.Level, Message: r.Message, Attrs: map[string]any{}}
	for _, a := range h.attrs {
		rec.Attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		rec.Attrs[a.Key] = a.Value.Any()
		return true
	})
	h.logs.add(rec)
	return nil
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &captureHandler{logs: h.logs}
	next.attrs = append(append(next.attrs, h.attrs...), attrs...)
	return next
}

func (h *captureHandler) WithGroup(_ string) slog.Handler {
	return h
}
