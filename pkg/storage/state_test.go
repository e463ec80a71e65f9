package storage_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	interrors "github.com/vango-dev/statesync/internal/errors"
	"github.com/vango-dev/statesync/pkg/hooktest"
	"github.com/vango-dev/statesync/pkg/reactive"
	"github.com/vango-dev/statesync/pkg/storage"
)

type prefs struct {
	Theme string `json:"theme"`
	Size  int    `json:"size"`
}

func raw(t *testing.T, s storage.Store, key string) (string, bool) {
	t.Helper()
	v, ok, err := s.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get(%s): %v", key, err)
	}
	return v, ok
}

func TestUseStateAbsentKeyPersistsDefault(t *testing.T) {
	store := storage.NewMemoryStore()
	var st *storage.State[prefs]

	hooktest.Mount(t, func(o *reactive.Owner) {
		st = storage.UseState(o, store, "prefs", prefs{Theme: "light", Size: 2})
	})

	if st.Get() != (prefs{"light", 2}) {
		t.Errorf("Get = %+v", st.Get())
	}
	if v, _ := raw(t, store, "prefs"); v != `{"theme":"light","size":2}` {
		t.Errorf("stored = %q", v)
	}
}

func TestUseStateObjectRoundTrip(t *testing.T) {
	store := storage.NewMemoryStore()
	var st *storage.State[prefs]
	h := hooktest.Mount(t, func(o *reactive.Owner) {
		st = storage.UseState(o, store, "prefs", prefs{})
	})

	st.Set(prefs{Theme: "dark", Size: 3})
	if v, _ := raw(t, store, "prefs"); v != `{"theme":"dark","size":3}` {
		t.Errorf("stored = %q", v)
	}
	h.Unmount()

	// A fresh component reads the stored JSON back.
	var again *storage.State[prefs]
	hooktest.Mount(t, func(o *reactive.Owner) {
		again = storage.UseState(o, store, "prefs", prefs{})
	})
	if again.Get() != (prefs{"dark", 3}) {
		t.Errorf("reloaded = %+v", again.Get())
	}
}

func TestUseStatePrimitivesStoredRaw(t *testing.T) {
	store := storage.NewMemoryStore()
	var name *storage.State[string]
	var count *storage.State[int]
	hooktest.Mount(t, func(o *reactive.Owner) {
		name = storage.UseState(o, store, "name", "")
		count = storage.UseState(o, store, "count", 0)
	})

	name.Set("ada")
	count.Update(func(n int) int { return n + 5 })

	if v, _ := raw(t, store, "name"); v != "ada" {
		t.Errorf("name stored as %q", v)
	}
	if v, _ := raw(t, store, "count"); v != "5" {
		t.Errorf("count stored as %q", v)
	}
}

func TestUseStateStringSurvivesReload(t *testing.T) {
	for _, v := range []string{"null", "123", `"quoted"`} {
		store := storage.NewMemoryStore()
		var st *storage.State[string]
		h := hooktest.Mount(t, func(o *reactive.Owner) {
			st = storage.UseState(o, store, "note", "")
		})
		st.Set(v)
		if got, _ := raw(t, store, "note"); got != v {
			t.Errorf("stored %q as %q", v, got)
		}
		h.Unmount()

		var again *storage.State[string]
		hooktest.Mount(t, func(o *reactive.Owner) {
			again = storage.UseState(o, store, "note", "default")
		})
		if again.Get() != v {
			t.Errorf("reloaded %q as %q", v, again.Get())
		}
	}
}

func TestUseStateNilRemovesKey(t *testing.T) {
	store := storage.NewMemoryStore()
	var st *storage.State[*prefs]
	hooktest.Mount(t, func(o *reactive.Owner) {
		st = storage.UseState(o, store, "prefs", &prefs{Theme: "light"})
	})
	if _, ok := raw(t, store, "prefs"); !ok {
		t.Fatal("default should be persisted")
	}

	st.Set(nil)
	if _, ok := raw(t, store, "prefs"); ok {
		t.Error("nil value should remove the key")
	}
	if st.Get() != nil {
		t.Errorf("Get = %+v, want nil", st.Get())
	}
}

func TestUseStateClear(t *testing.T) {
	store := storage.NewMemoryStore()
	var st *storage.State[string]
	hooktest.Mount(t, func(o *reactive.Owner) {
		st = storage.UseState(o, store, "token", "abc")
	})

	st.Clear()
	if _, ok := raw(t, store, "token"); ok {
		t.Error("Clear should remove the key")
	}
	if st.Get() != "" {
		t.Errorf("Get = %q, want empty", st.Get())
	}
}

func TestUseStateLegacyRawString(t *testing.T) {
	store := storage.NewMemoryStore()
	store.Set(context.Background(), "legacy", "plain {not json")

	var asString *storage.State[string]
	var asAny *storage.State[any]
	hooktest.Mount(t, func(o *reactive.Owner) {
		asString = storage.UseState(o, store, "legacy", "default")
		asAny = storage.UseState[any](o, store, "legacy", nil)
	})

	if asString.Get() != "plain {not json" {
		t.Errorf("string state = %q", asString.Get())
	}
	if asAny.Get() != "plain {not json" {
		t.Errorf("any state = %#v", asAny.Get())
	}
	if v, _ := raw(t, store, "legacy"); v != "plain {not json" {
		t.Errorf("legacy value was rewritten to %q", v)
	}
}

func TestUseStateFuncIsLazy(t *testing.T) {
	store := storage.NewMemoryStore()
	store.Set(context.Background(), "present", "1")

	calls := 0
	producer := func() int {
		calls++
		return 42
	}

	var present, absent *storage.State[int]
	h := hooktest.Mount(t, func(o *reactive.Owner) {
		present = storage.UseStateFunc(o, store, "present", producer)
		absent = storage.UseStateFunc(o, store, "absent", producer)
	})
	h.Rerender()

	if present.Get() != 1 || absent.Get() != 42 {
		t.Errorf("present=%d absent=%d", present.Get(), absent.Get())
	}
	if calls != 1 {
		t.Errorf("producer called %d times, want 1", calls)
	}
}

func TestUseStateKeyChangeReloads(t *testing.T) {
	store := storage.NewMemoryStore()
	store.Set(context.Background(), "a", "first")
	store.Set(context.Background(), "b", "second")

	key := "a"
	var st *storage.State[string]
	h := hooktest.Mount(t, func(o *reactive.Owner) {
		st = storage.UseState(o, store, key, "")
	})
	key = "b"
	h.Rerender()

	if st.Get() != "second" {
		t.Errorf("Get = %q, want second", st.Get())
	}
	st.Set("updated")
	if v, _ := raw(t, store, "a"); v != "first" {
		t.Errorf("old key was written: %q", v)
	}
}

// failingStore fails every operation.
type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk on fire")
}
func (failingStore) Set(context.Context, string, string) error { return errors.New("disk on fire") }
func (failingStore) Remove(context.Context, string) error    { return errors.New("disk on fire") }

func TestUseStateStoreErrorsAreLogged(t *testing.T) {
	logger, logs := hooktest.CaptureLogs()
	var st *storage.State[string]

	hooktest.Mount(t, func(o *reactive.Owner) {
		st = storage.UseState[string](o, failingStore{}, "k", "fallback")
	}, reactive.WithLogger(logger))

	if st.Get() != "fallback" {
		t.Errorf("Get = %q, want fallback", st.Get())
	}
	st.Set("new")
	if st.Get() != "new" {
		t.Errorf("state should update even when the write fails, got %q", st.Get())
	}
	if !logs.Has(slog.LevelError, "storage read failed, using default") ||
		!logs.Has(slog.LevelError, "storage write failed") {
		t.Errorf("records = %+v", logs.Records())
	}
}

func TestUseLocalAndSessionState(t *testing.T) {
	local := storage.NewMemoryStore()
	prev := storage.SetLocal(local)
	defer storage.SetLocal(prev)

	var l, s *storage.State[string]
	h := hooktest.Mount(t, func(o *reactive.Owner) {
		l = storage.UseLocalState(o, "k", "local")
		s = storage.UseSessionState(o, "k", "session")
	})

	l.Set("L")
	s.Set("S")
	if v, _ := raw(t, local, "k"); v != "L" {
		t.Errorf("local = %q", v)
	}
	if v, _ := raw(t, storage.Session(h.Owner()), "k"); v != "S" {
		t.Errorf("session = %q", v)
	}
}

func TestUseStatePreconditions(t *testing.T) {
	store := storage.NewMemoryStore()
	tests := []struct {
		name string
		code string
		call func(o *reactive.Owner)
	}{
		{"empty key", "H001", func(o *reactive.Owner) { storage.UseState(o, store, "", 1) }},
		{"nil store", "H005", func(o *reactive.Owner) { storage.UseState[int](o, nil, "k", 1) }},
		{"nil producer", "H003", func(o *reactive.Owner) { storage.UseStateFunc[int](o, store, "k", nil) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if r := recover(); !interrors.HasCode(r, tt.code) {
					t.Fatalf("expected %s panic, got %v", tt.code, r)
				}
			}()
			reactive.NewOwner(nil).Render(tt.call)
		})
	}
}
