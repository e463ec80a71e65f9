package codec

import (
	"reflect"
	"testing"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string is raw", "dark", "dark"},
		{"numeric string stays raw", "123", "123"},
		{"int", 42, "42"},
		{"bool", true, "true"},
		{"map", map[string]int{"a": 1}, `{"a":1}`},
		{"struct", struct {
			Name string `json:"name"`
		}{"x"}, `{"name":"x"}`},
		{"slice", []string{"a", "b"}, `["a","b"]`},
		{"named string is raw", theme("dark"), "dark"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.in)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if got != tt.want {
				t.Errorf("Encode = %q, want %q", got, tt.want)
			}
		})
	}
}

type theme string

func TestEncodeError(t *testing.T) {
	if _, err := Encode(make(chan int)); err == nil {
		t.Error("expected error encoding a channel")
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		raw  string
		want any
	}{
		{`{"a":1}`, map[string]any{"a": float64(1)}},
		{`[1,2]`, []any{float64(1), float64(2)}},
		{`true`, true},
		{`legacy value`, "legacy value"},
		{`{broken`, "{broken"},
		{``, ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := Decode(tt.raw); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Decode(%q) = %#v, want %#v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestDecodeAs(t *testing.T) {
	t.Run("string falls back to raw", func(t *testing.T) {
		got, ok := DecodeAs[string]("123")
		if !ok || got != "123" {
			t.Errorf("DecodeAs = %q, %v", got, ok)
		}
	})

	t.Run("strings round-trip unchanged", func(t *testing.T) {
		for _, in := range []string{"null", "123", `"quoted"`, "true", `{"a":1}`, ""} {
			raw, err := Encode(in)
			if err != nil {
				t.Fatalf("Encode(%q): %v", in, err)
			}
			got, ok := DecodeAs[string](raw)
			if !ok || got != in {
				t.Errorf("DecodeAs(Encode(%q)) = %q, %v", in, got, ok)
			}
		}
	})

	t.Run("named string round-trips", func(t *testing.T) {
		raw, _ := Encode(theme("null"))
		got, ok := DecodeAs[theme](raw)
		if !ok || got != "null" {
			t.Errorf("DecodeAs = %q, %v", got, ok)
		}
	})

	t.Run("struct", func(t *testing.T) {
		type prefs struct {
			Theme string `json:"theme"`
			Size  int    `json:"size"`
		}
		got, ok := DecodeAs[prefs](`{"theme":"dark","size":3}`)
		if !ok || got != (prefs{"dark", 3}) {
			t.Errorf("DecodeAs = %+v, %v", got, ok)
		}
	})

	t.Run("any falls back to raw", func(t *testing.T) {
		got, ok := DecodeAs[any]("not json")
		if !ok || got != "not json" {
			t.Errorf("DecodeAs = %#v, %v", got, ok)
		}
	})

	t.Run("int rejects garbage", func(t *testing.T) {
		if _, ok := DecodeAs[int]("abc"); ok {
			t.Error("expected ok=false")
		}
	})
}

func TestIsNil(t *testing.T) {
	var p *int
	var m map[string]int
	var s []int
	var e error

	for name, v := range map[string]any{"nil": nil, "pointer": p, "map": m, "slice": s, "error": e} {
		if !IsNil(v) {
			t.Errorf("IsNil(%s) = false", name)
		}
	}
	for name, v := range map[string]any{"zero int": 0, "empty string": "", "empty map": map[string]int{}} {
		if IsNil(v) {
			t.Errorf("IsNil(%s) = true", name)
		}
	}
}
