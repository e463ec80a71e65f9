package reactive_test

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	interrors "github.com/vango-dev/statesync/internal/errors"
	"github.com/vango-dev/statesync/pkg/hooktest"
	"github.com/vango-dev/statesync/pkg/reactive"
	"github.com/vango-dev/statesync/pkg/telemetry"
)

func TestUseEffectRunsOncePerDepsChange(t *testing.T) {
	runs, cleanups := 0, 0
	key := "a"

	h := hooktest.Mount(t, func(o *reactive.Owner) {
		reactive.UseEffect(o, func() reactive.Cleanup {
			runs++
			return func() { cleanups++ }
		}, key)
	})

	if runs != 1 {
		t.Fatalf("runs after mount = %d, want 1", runs)
	}

	h.Rerender()
	if runs != 1 {
		t.Errorf("runs after same-deps render = %d, want 1", runs)
	}

	key = "b"
	h.Rerender()
	if runs != 2 || cleanups != 1 {
		t.Errorf("after deps change runs=%d cleanups=%d, want 2/1", runs, cleanups)
	}

	h.Unmount()
	if cleanups != 2 {
		t.Errorf("cleanups after unmount = %d, want 2", cleanups)
	}
}

func TestUseEffectNoDepsRunsOnce(t *testing.T) {
	runs := 0
	h := hooktest.Mount(t, func(o *reactive.Owner) {
		reactive.UseEffect(o, func() reactive.Cleanup {
			runs++
			return nil
		})
	})
	h.Rerender()
	h.Rerender()
	if runs != 1 {
		t.Errorf("runs = %d, want 1", runs)
	}
}

func TestUseAsyncEffectDeepEqualDeps(t *testing.T) {
	var runs atomic.Int32
	deps := []int{1, 2}

	h := hooktest.Mount(t, func(o *reactive.Owner) {
		reactive.UseAsyncEffect(o, func(ctx context.Context) error {
			runs.Add(1)
			return nil
		}, append([]int(nil), deps...))
	})
	hooktest.Eventually(t, func() bool { return runs.Load() == 1 }, 0, "first run")

	h.Rerender()
	hooktest.Never(t, func() bool { return runs.Load() > 1 }, 30*time.Millisecond, "deep-equal deps re-ran the effect")

	deps = []int{1, 3}
	h.Rerender()
	hooktest.Eventually(t, func() bool { return runs.Load() == 2 }, 0, "changed deps should re-run")
}

func TestUseAsyncEffectErrorIsLogged(t *testing.T) {
	logger, logs := hooktest.CaptureLogs()
	reg := prometheus.NewRegistry()

	hooktest.Mount(t, func(o *reactive.Owner) {
		reactive.UseAsyncEffect(o, func(ctx context.Context) error {
			return errors.New("boom")
		})
	}, reactive.WithLogger(logger), reactive.WithMetrics(telemetry.New(telemetry.WithRegistry(reg))))

	hooktest.Eventually(t, func() bool { return logs.Count(slog.LevelError) == 1 }, 0, "one error logged")
	if !logs.Has(slog.LevelError, "async effect failed") {
		t.Errorf("records = %+v", logs.Records())
	}
}

func TestUseAsyncEffectPanicIsRecovered(t *testing.T) {
	logger, logs := hooktest.CaptureLogs()

	hooktest.Mount(t, func(o *reactive.Owner) {
		reactive.UseAsyncEffect(o, func(ctx context.Context) error {
			panic("kaboom")
		})
	}, reactive.WithLogger(logger))

	hooktest.Eventually(t, func() bool { return logs.Has(slog.LevelError, "async effect panicked") }, 0, "panic logged")
}

func TestUseAsyncEffectCancelledOnUnmount(t *testing.T) {
	cancelled := make(chan struct{})

	h := hooktest.Mount(t, func(o *reactive.Owner) {
		reactive.UseAsyncEffect(o, func(ctx context.Context) error {
			<-ctx.Done()
			close(cancelled)
			return ctx.Err()
		})
	}, reactive.WithLogger(slog.New(slog.DiscardHandler)))

	h.Unmount()
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("effect context was not cancelled on unmount")
	}
}

func TestUseAsyncEffectNilPanics(t *testing.T) {
	owner := reactive.NewOwner(nil)
	defer func() {
		if r := recover(); !interrors.HasCode(r, "H004") {
			t.Fatalf("expected H004 panic, got %v", r)
		}
	}()
	owner.Render(func(o *reactive.Owner) {
		reactive.UseAsyncEffect(o, nil)
	})
}
