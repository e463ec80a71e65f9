package storage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vango-dev/statesync/internal/codec"
	"github.com/vango-dev/statesync/internal/errors"
	"github.com/vango-dev/statesync/pkg/reactive"
	"github.com/vango-dev/statesync/pkg/telemetry"
)

// OpTimeout bounds each store operation issued by a hook.
var OpTimeout = 5 * time.Second

// State is the handle returned by the storage hooks.
type State[T any] struct {
	signal *reactive.Signal[T]

	mu     sync.Mutex
	store  Store
	key    string
	logger *slog.Logger

	metrics *telemetry.Metrics
}

// Get returns the current value.
func (s *State[T]) Get() T {
	return s.signal.Get()
}

// Set updates the state and writes v to the store. A nil pointer, map,
// slice or interface value removes the key instead. Store failures are
// logged; the state is updated either way.
func (s *State[T]) Set(v T) {
	s.signal.Set(v)
	s.persist(v)
}

// Update applies fn to the current value and writes the result through.
func (s *State[T]) Update(fn func(T) T) {
	s.signal.Update(fn)
	s.persist(s.signal.Get())
}

// Clear removes the key and resets the state to the zero value of T.
func (s *State[T]) Clear() {
	var zero T
	s.signal.Set(zero)
	s.remove()
}

// Subscribe calls fn after every change of the value. The returned function
// unsubscribes.
func (s *State[T]) Subscribe(fn func(T)) func() {
	return s.signal.Subscribe(fn)
}

func (s *State[T]) target() (Store, string, *slog.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store, s.key, s.logger
}

func (s *State[T]) persist(v T) {
	if codec.IsNil(v) {
		s.remove()
		return
	}

	store, key, logger := s.target()
	raw, err := codec.Encode(v)
	if err != nil {
		logger.Error("storage encode failed", "error", err)
		s.metrics.StoreError("storage", "set")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), OpTimeout)
	defer cancel()
	if err := store.Set(ctx, key, raw); err != nil {
		logger.Error("storage write failed", "error", err)
		s.metrics.StoreError("storage", "set")
	}
}

func (s *State[T]) remove() {
	store, key, logger := s.target()

	ctx, cancel := context.WithTimeout(context.Background(), OpTimeout)
	defer cancel()
	if err := store.Remove(ctx, key); err != nil {
		logger.Error("storage remove failed", "error", err)
		s.metrics.StoreError("storage", "remove")
	}
}

// load reads the current key. An absent key yields def() and persists it.
func (s *State[T]) load(def func() T) {
	store, key, logger := s.target()

	ctx, cancel := context.WithTimeout(context.Background(), OpTimeout)
	raw, ok, err := store.Get(ctx, key)
	cancel()

	if err != nil {
		logger.Error("storage read failed, using default", "error", err)
		s.metrics.StoreError("storage", "get")
		s.signal.Set(def())
		return
	}
	if ok {
		v, decoded := codec.DecodeAs[T](raw)
		if decoded {
			if s.signal.Set(v) {
				s.metrics.StateChange("storage")
			}
			return
		}
		logger.Warn("stored value does not match state type, using default", "value", raw)
	}

	v := def()
	s.signal.Set(v)
	s.persist(v)
}

// UseLocalState mirrors key of the Local store into state.
func UseLocalState[T any](o *reactive.Owner, key string, def T) *State[T] {
	return useState(o, "storage.UseLocalState", Local(), key, func() T { return def })
}

// UseSessionState mirrors key of o's Session store into state.
func UseSessionState[T any](o *reactive.Owner, key string, def T) *State[T] {
	reactive.MustOwner(o, "storage.UseSessionState")
	return useState(o, "storage.UseSessionState", Session(o), key, func() T { return def })
}

// UseState mirrors key of store into state.
//
// On first render (and whenever key or store changes) the key is read. A
// present value is decoded from JSON, falling back to the raw string; an
// absent key takes def, which is written through.
//
// An empty key panics.
func UseState[T any](o *reactive.Owner, store Store, key string, def T) *State[T] {
	return useState(o, "storage.UseState", store, key, func() T { return def })
}

// UseStateFunc is UseState with a lazily computed default. def is only
// called when the key is absent.
func UseStateFunc[T any](o *reactive.Owner, store Store, key string, def func() T) *State[T] {
	if def == nil {
		panic(errors.New("H003").WithDetail("storage.UseStateFunc: default producer is required"))
	}
	return useState(o, "storage.UseStateFunc", store, key, def)
}

func useState[T any](o *reactive.Owner, hook string, store Store, key string, def func() T) *State[T] {
	reactive.MustOwner(o, hook)
	if key == "" {
		panic(errors.New("H001").WithDetail(hook + ": key is required"))
	}
	if store == nil {
		panic(errors.New("H005").WithDetail(hook + ": store is required"))
	}

	s := reactive.UseSlot(o, reactive.HookStorage, func() *State[T] {
		var zero T
		return &State[T]{
			signal:  reactive.NewSignal(zero),
			metrics: o.Metrics(),
		}
	})

	s.mu.Lock()
	if s.key != key || s.logger == nil {
		s.logger = o.Logger().With("hook", "storage", "key", key)
	}
	s.store, s.key = store, key
	s.mu.Unlock()

	reactive.UseEffect(o, func() reactive.Cleanup {
		s.load(def)
		return nil
	}, key, store)

	return s
}
