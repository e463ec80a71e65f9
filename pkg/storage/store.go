// Package storage mirrors a key of a key-value store into reactive state.
//
// UseLocalState and UseSessionState address the process-wide local store and
// the per-component-tree session store; UseState takes any Store. Every Set
// writes through to the store, so the hook is the single source of truth and
// nothing polls:
//
//	prefs := storage.UseLocalState(o, "prefs", Prefs{Theme: "light"})
//	prefs.Set(Prefs{Theme: "dark"}) // persisted as {"theme":"dark"}
//	prefs.Clear()                   // key removed
//
// Strings are stored raw and other values as JSON. A stored value that is not
// valid JSON is returned as the raw string.
package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/vango-dev/statesync/pkg/reactive"
)

// Store is a string key-value store. Implementations must be safe for
// concurrent use.
type Store interface {
	// Get returns the value of key. ok is false if the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key, replacing any existing value.
	Set(ctx context.Context, key, value string) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("storage: store is closed")

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu     sync.RWMutex
	items  map[string]string
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]string)}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return "", false, ErrClosed
	}
	v, ok := m.items[key]
	return v, ok, nil
}

// Set implements Store.
func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	m.items[key] = value
	return nil
}

// Remove implements Store.
func (m *MemoryStore) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	delete(m.items, key)
	return nil
}

// Keys returns the stored keys in sorted order.
func (m *MemoryStore) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of stored keys.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Close marks the store as closed and drops its contents.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.items = nil
	return nil
}

var (
	localMu sync.RWMutex
	local   Store = NewMemoryStore()
)

// Local returns the process-wide store used by UseLocalState.
func Local() Store {
	localMu.RLock()
	defer localMu.RUnlock()
	return local
}

// SetLocal replaces the store returned by Local and returns the previous one.
// Hooks that are already mounted keep the store they started with until
// their next render.
func SetLocal(s Store) Store {
	localMu.Lock()
	defer localMu.Unlock()
	prev := local
	local = s
	return prev
}

type sessionKey struct{}

var sessionMu sync.Mutex

// Session returns the session store of o's component tree: the nearest one
// provided with ProvideSession, or else a MemoryStore created on the root
// owner on first use and closed when the root is disposed.
func Session(o *reactive.Owner) Store {
	reactive.MustOwner(o, "storage.Session")

	sessionMu.Lock()
	defer sessionMu.Unlock()

	if v, ok := o.Lookup(sessionKey{}); ok {
		return v.(Store)
	}
	root := o.Root()
	s := NewMemoryStore()
	root.Provide(sessionKey{}, Store(s))
	root.OnCleanup(func() { s.Close() })
	return s
}

// ProvideSession makes s the session store for o and its descendants.
func ProvideSession(o *reactive.Owner, s Store) {
	reactive.MustOwner(o, "storage.ProvideSession")
	o.Provide(sessionKey{}, s)
}
