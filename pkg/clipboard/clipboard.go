// Package clipboard writes text to a clipboard and reports success as a
// boolean. Failures (no clipboard utility, permission denied, cancelled
// context) are logged and never returned.
package clipboard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	atotto "github.com/atotto/clipboard"

	"github.com/vango-dev/statesync/pkg/telemetry"
)

// Writer writes plain text to a clipboard.
type Writer interface {
	WriteText(ctx context.Context, text string) error
}

// WriterFunc adapts a function to Writer.
type WriterFunc func(ctx context.Context, text string) error

// WriteText implements Writer.
func (f WriterFunc) WriteText(ctx context.Context, text string) error {
	return f(ctx, text)
}

// systemWriter uses the platform clipboard utilities (pbcopy, xclip, xsel,
// wl-copy or the Windows API).
type systemWriter struct{}

// System returns a Writer for the operating system clipboard.
func System() Writer {
	return systemWriter{}
}

func (systemWriter) WriteText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if atotto.Unsupported {
		return fmt.Errorf("clipboard: no clipboard utility available")
	}
	done := make(chan error, 1)
	go func() { done <- atotto.WriteAll(text) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Memory is an in-process clipboard.
type Memory struct {
	mu   sync.Mutex
	text string
}

// WriteText implements Writer.
func (m *Memory) WriteText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.text = text
	m.mu.Unlock()
	return nil
}

// Text returns the last text written.
func (m *Memory) Text() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text
}

// Options configures Copy and CopyAsync. The zero value logs to
// slog.Default and records no metrics.
type Options struct {
	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

// Copy writes text through w and reports whether it succeeded.
func Copy(ctx context.Context, w Writer, text string, opts ...Options) (ok bool) {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("clipboard write panicked", "panic", r)
			ok = false
		}
		o.Metrics.ClipboardWrite(ok)
	}()

	if w == nil {
		logger.Error("clipboard write failed", "error", "no clipboard writer")
		return false
	}
	if err := w.WriteText(ctx, text); err != nil {
		logger.Error("clipboard write failed", "error", err)
		return false
	}
	return true
}

// CopyAsync runs Copy on its own goroutine. The returned channel receives
// the result and is then closed.
func CopyAsync(ctx context.Context, w Writer, text string, opts ...Options) <-chan bool {
	result := make(chan bool, 1)
	go func() {
		defer close(result)
		result <- Copy(ctx, w, text, opts...)
	}()
	return result
}
