package reactive

import (
	"context"
	"fmt"
	"reflect"
	"runtime/debug"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/vango-dev/statesync/internal/errors"
	"github.com/vango-dev/statesync/pkg/telemetry"
)

// Cleanup is a function returned by effects to release resources.
// It is called before the effect re-runs and when the owner is disposed.
type Cleanup func()

// effectSlot is the per-owner state of one UseEffect call site.
type effectSlot struct {
	mu      sync.Mutex
	ran     bool
	deps    []any
	cleanup Cleanup
}

func (s *effectSlot) runCleanup() {
	s.mu.Lock()
	cleanup := s.cleanup
	s.cleanup = nil
	s.mu.Unlock()

	if cleanup != nil {
		cleanup()
	}
}

// UseEffect runs fn on the first render and again on every render whose deps
// differ from the previous render's deps. The Cleanup returned by the
// previous run is called before each re-run and when the owner is disposed.
//
// No deps means "run once at mount". Deps are compared element-wise:
// pointers, channels and funcs by identity, everything else with
// reflect.DeepEqual.
func UseEffect(o *Owner, fn func() Cleanup, deps ...any) {
	s := UseSlot(o, HookEffect, func() *effectSlot {
		s := &effectSlot{}
		o.OnCleanup(s.runCleanup)
		return s
	})
	runEffect(o, s, fn, deps)
}

func runEffect(o *Owner, s *effectSlot, fn func() Cleanup, deps []any) {
	s.mu.Lock()
	if s.ran && depsEqual(s.deps, deps) {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.runCleanup()

	cleanup := fn()

	s.mu.Lock()
	s.ran = true
	s.deps = append([]any(nil), deps...)
	s.cleanup = cleanup
	s.mu.Unlock()

	// The owner may have been disposed while fn ran.
	if o.IsDisposed() {
		s.runCleanup()
	}
}

// UseAsyncEffect runs fn on its own goroutine on the first render and again
// whenever deps change (same rules as UseEffect). fn's context is cancelled
// when deps change or the owner is disposed.
//
// A returned error or a panic inside fn is logged and recorded, never
// propagated: a failing effect cannot take down the component tree.
// A nil fn panics immediately.
func UseAsyncEffect(o *Owner, fn func(ctx context.Context) error, deps ...any) {
	MustOwner(o, "UseAsyncEffect")
	if fn == nil {
		panic(errors.New("H004").WithDetail("UseAsyncEffect: function is required"))
	}

	s := UseSlot(o, HookAsyncEffect, func() *effectSlot {
		s := &effectSlot{}
		o.OnCleanup(s.runCleanup)
		return s
	})

	runEffect(o, s, func() Cleanup {
		ctx, cancel := context.WithCancel(context.Background())
		go runAsync(ctx, o, fn)
		return Cleanup(cancel)
	}, deps)
}

func runAsync(ctx context.Context, o *Owner, fn func(ctx context.Context) error) {
	ctx, span := o.Tracer().Start(ctx, "statesync.AsyncEffect")
	span.SetAttributes(attribute.Int64("owner.id", int64(o.ID())))

	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("async effect panicked: %v", r)
			o.Logger().Error("async effect panicked",
				"owner", o.ID(),
				"panic", r,
				"stack", string(debug.Stack()))
			o.Metrics().AsyncEffect("panic")
		}
		telemetry.EndSpan(span, err)
	}()

	err = fn(ctx)
	if err != nil {
		o.Logger().Error("async effect failed", "owner", o.ID(), "error", err)
		o.Metrics().AsyncEffect("error")
		return
	}
	o.Metrics().AsyncEffect("ok")
}

// depsEqual compares two dependency lists element-wise.
func depsEqual(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !depEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

func depEqual(a, b any) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if !va.IsValid() || !vb.IsValid() {
		return va.IsValid() == vb.IsValid()
	}
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Pointer, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	}
	return reflect.DeepEqual(a, b)
}
