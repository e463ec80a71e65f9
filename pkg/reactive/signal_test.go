package reactive

import (
	"sync"
	"testing"
)

func TestSignalGetSet(t *testing.T) {
	s := NewSignal(10)
	if s.Get() != 10 {
		t.Errorf("Get = %d, want 10", s.Get())
	}
	if !s.Set(20) {
		t.Error("Set to a new value should report a change")
	}
	if s.Set(20) {
		t.Error("Set to the same value should not report a change")
	}
	if s.ID() == 0 {
		t.Error("signal should have non-zero ID")
	}
}

func TestSignalSubscribe(t *testing.T) {
	s := NewSignal("a")
	var got []string
	unsubscribe := s.Subscribe(func(v string) {
		got = append(got, v)
	})

	s.Set("b")
	s.Set("b")
	s.Update(func(v string) string { return v + "c" })
	unsubscribe()
	s.Set("d")

	if len(got) != 2 || got[0] != "b" || got[1] != "bc" {
		t.Errorf("notifications = %v, want [b bc]", got)
	}
}

func TestSignalDeepEquality(t *testing.T) {
	s := NewSignal(map[string]int{"a": 1})
	calls := 0
	s.Subscribe(func(map[string]int) { calls++ })

	s.Set(map[string]int{"a": 1})
	if calls != 0 {
		t.Error("deep-equal map should not notify")
	}
	s.Set(map[string]int{"a": 2})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestSignalAnyMixedTypes(t *testing.T) {
	s := NewSignal[any](1)
	if !s.Set("1") {
		t.Error("changing dynamic type should be a change")
	}
	if !s.Set(nil) {
		t.Error("setting nil should be a change")
	}
}

func TestSignalWithEquals(t *testing.T) {
	s := NewSignal(1).WithEquals(func(a, b int) bool { return a%10 == b%10 })
	if s.Set(11) {
		t.Error("custom equality should treat 1 and 11 as equal")
	}
	if s.Get() != 1 {
		t.Errorf("Get = %d, want 1", s.Get())
	}
}

func TestSignalConcurrentUpdate(t *testing.T) {
	s := NewSignal(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Update(func(n int) int { return n + 1 })
		}()
	}
	wg.Wait()
	if s.Get() != 50 {
		t.Errorf("Get = %d, want 50", s.Get())
	}
}

func TestRef(t *testing.T) {
	owner := NewOwner(nil)
	var ref *Ref[string]
	owner.Render(func(o *Owner) {
		ref = UseRef(o, "init")
	})
	if ref.Get() != "init" {
		t.Errorf("Get = %q, want init", ref.Get())
	}
	ref.Set("changed")
	owner.Render(func(o *Owner) {
		if UseRef(o, "init").Get() != "changed" {
			t.Error("ref should keep its value across renders")
		}
	})
}

func TestDepsEqual(t *testing.T) {
	type box struct{ n int }
	p1, p2 := &box{1}, &box{1}
	ch := make(chan int)

	tests := []struct {
		name string
		a, b []any
		want bool
	}{
		{"both empty", nil, []any{}, true},
		{"length differs", []any{1}, []any{1, 2}, false},
		{"scalars equal", []any{1, "a"}, []any{1, "a"}, true},
		{"scalars differ", []any{1}, []any{2}, false},
		{"deep slices", []any{[]int{1, 2}}, []any{[]int{1, 2}}, true},
		{"deep maps differ", []any{map[string]int{"a": 1}}, []any{map[string]int{"a": 2}}, false},
		{"same pointer", []any{p1}, []any{p1}, true},
		{"equal pointees, different pointers", []any{p1}, []any{p2}, false},
		{"same chan", []any{ch}, []any{ch}, true},
		{"nil vs value", []any{nil}, []any{0}, false},
		{"nil vs nil", []any{nil}, []any{nil}, true},
		{"type differs", []any{int64(1)}, []any{1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := depsEqual(tt.a, tt.b); got != tt.want {
				t.Errorf("depsEqual = %v, want %v", got, tt.want)
			}
		})
	}
}
