package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{
			name:    "usage error",
			code:    "H001",
			wantMsg: "Key is required",
			wantCat: CategoryUsage,
		},
		{
			name:    "storage error",
			code:    "H041",
			wantMsg: "Unknown storage backend",
			wantCat: CategoryStorage,
		},
		{
			name:    "unknown error code",
			code:    "H999",
			wantMsg: "Unknown error",
			wantCat: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCat)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestNewf(t *testing.T) {
	err := Newf(CategoryCLI, "file %q not found", "statesync.json")
	if err.Message != `file "statesync.json" not found` {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Code != "" {
		t.Errorf("Code = %q, want empty", err.Code)
	}
}

func TestErrorString(t *testing.T) {
	err := New("H003").WithDetail("scroll: Fetch is required")
	got := err.Error()
	if got != "H003: Missing required argument: scroll: Fetch is required" {
		t.Errorf("Error() = %q", got)
	}
}

func TestWrapAndUnwrap(t *testing.T) {
	cause := fmt.Errorf("dial tcp: refused")
	err := New("H040").Wrap(cause)

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should find wrapped cause")
	}
	if !strings.Contains(err.Error(), "dial tcp: refused") {
		t.Errorf("Error() should include cause, got %q", err.Error())
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, "H040") != nil {
		t.Error("FromError(nil) should be nil")
	}

	orig := New("H041")
	wrapped := fmt.Errorf("open: %w", orig)
	if got := FromError(wrapped, "H040"); got != orig {
		t.Error("FromError should return the existing *Error")
	}

	plain := stderrors.New("boom")
	got := FromError(plain, "H040")
	if got.Code != "H040" || got.Wrapped != plain {
		t.Errorf("FromError(plain) = %+v", got)
	}
}

func TestHasCode(t *testing.T) {
	var recovered any
	func() {
		defer func() { recovered = recover() }()
		panic(New("H001"))
	}()

	if !HasCode(recovered, "H001") {
		t.Error("HasCode should match a recovered *Error")
	}
	if HasCode(recovered, "H002") {
		t.Error("HasCode should not match a different code")
	}
	if HasCode("H001", "H001") {
		t.Error("HasCode should not match non-error values")
	}
	if !HasCode(fmt.Errorf("ctx: %w", New("H004")), "H004") {
		t.Error("HasCode should look through wrapping")
	}
}

func TestFormat(t *testing.T) {
	out := New("H001").
		WithDetail(`cookie.UseState called with key ""`).
		WithSuggestion("Pass the cookie name").
		Format()

	for _, want := range []string{"ERROR H001: Key is required", `key ""`, "Hint: Pass the cookie name"} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q:\n%s", want, out)
		}
	}
}

func TestRegistry(t *testing.T) {
	codes := GetAllCodes()
	if len(codes) == 0 {
		t.Fatal("registry should not be empty")
	}
	for _, code := range codes {
		tmpl, ok := GetTemplate(code)
		if !ok || tmpl.Message == "" {
			t.Errorf("code %s has no message", code)
		}
	}

	Register("H900", ErrorTemplate{Category: CategoryCLI, Message: "custom"})
	if New("H900").Message != "custom" {
		t.Error("Register should add the template")
	}
}
