package reactive

import (
	"reflect"
	"sync"
)

// Signal is a reactive value container.
// Subscribers are notified after every Set or Update that changes the value.
type Signal[T any] struct {
	id uint64

	value T
	mu    sync.RWMutex

	// equal decides whether a write changed the value.
	// If nil, uses default equality checking.
	equal func(T, T) bool

	subs   map[uint64]func(T)
	subMu  sync.RWMutex
	nextID uint64
}

// NewSignal creates a new signal with the given initial value.
func NewSignal[T any](initial T) *Signal[T] {
	return &Signal[T]{
		id:    nextID(),
		value: initial,
	}
}

// Get returns the current value.
func (s *Signal[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set updates the signal's value and notifies subscribers if the value changed.
// It reports whether the value changed.
func (s *Signal[T]) Set(value T) bool {
	s.mu.Lock()
	changed := !s.equals(s.value, value)
	if changed {
		s.value = value
	}
	s.mu.Unlock()

	if changed {
		s.notify(value)
	}
	return changed
}

// Update atomically reads and updates the signal's value.
// The function receives the current value and returns the new value.
func (s *Signal[T]) Update(fn func(T) T) {
	s.mu.Lock()
	oldValue := s.value
	newValue := fn(oldValue)
	changed := !s.equals(oldValue, newValue)
	if changed {
		s.value = newValue
	}
	s.mu.Unlock()

	if changed {
		s.notify(newValue)
	}
}

// Subscribe registers fn to be called with the new value after each change.
// The returned function unsubscribes.
func (s *Signal[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	s.subMu.Lock()
	if s.subs == nil {
		s.subs = make(map[uint64]func(T))
	}
	s.nextID++
	id := s.nextID
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// WithEquals returns the signal configured with a custom equality function.
func (s *Signal[T]) WithEquals(fn func(T, T) bool) *Signal[T] {
	s.equal = fn
	return s
}

// ID returns the unique identifier for this signal.
func (s *Signal[T]) ID() uint64 {
	return s.id
}

// notify calls subscribers without holding any lock.
func (s *Signal[T]) notify(value T) {
	s.subMu.RLock()
	subs := make([]func(T), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subMu.RUnlock()

	for _, fn := range subs {
		fn(value)
	}
}

func (s *Signal[T]) equals(a, b T) bool {
	if s.equal != nil {
		return s.equal(a, b)
	}
	return defaultEquals(a, b)
}

// defaultEquals uses == for common comparable types and reflect.DeepEqual for
// everything else.
func defaultEquals[T any](a, b T) bool {
	switch av := any(a).(type) {
	case int:
		bv, ok := any(b).(int)
		return ok && av == bv
	case int64:
		bv, ok := any(b).(int64)
		return ok && av == bv
	case float64:
		bv, ok := any(b).(float64)
		return ok && av == bv
	case string:
		bv, ok := any(b).(string)
		return ok && av == bv
	case bool:
		bv, ok := any(b).(bool)
		return ok && av == bv
	default:
		return reflect.DeepEqual(a, b)
	}
}

// UseSignal returns the owner's signal for this hook slot, created with
// initial on the first render.
func UseSignal[T any](o *Owner, initial T) *Signal[T] {
	slot := UseSlot(o, HookSignal, func() *Signal[T] {
		return NewSignal(initial)
	})
	return slot
}

// Ref is a mutable box whose identity is stable across renders.
type Ref[T any] struct {
	mu    sync.RWMutex
	value T
}

// Get returns the current value.
func (r *Ref[T]) Get() T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.value
}

// Set replaces the current value.
func (r *Ref[T]) Set(v T) {
	r.mu.Lock()
	r.value = v
	r.mu.Unlock()
}

// UseRef returns the owner's ref for this hook slot. Writing a ref does not
// notify anyone.
func UseRef[T any](o *Owner, initial T) *Ref[T] {
	return UseSlot(o, HookRef, func() *Ref[T] {
		return &Ref[T]{value: initial}
	})
}
