// Package cookie reads and writes named cookies and mirrors them into
// reactive state.
//
// A Jar is the cookie store: Cookie returns the request-style header
// ("a=1; b=2") and SetCookie commits one Set-Cookie line. Values are stored
// raw when they are strings and as JSON otherwise; reading decodes JSON and
// falls back to the raw text.
//
//	cookie.Set(jar, "prefs", map[string]string{"theme": "dark"}, cookie.Options{
//	    Path:     "/",
//	    MaxAge:   30 * 24 * time.Hour,
//	    SameSite: cookie.SameSiteStrict,
//	})
//
//	theme := cookie.UseState(o, jar, "theme", "light", cookie.StateOptions{})
//	theme.Set("dark")
package cookie

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vango-dev/statesync/internal/codec"
)

// SameSite values accepted in Options.SameSite.
const (
	SameSiteStrict = "Strict"
	SameSiteLax    = "Lax"
	SameSiteNone   = "None"
)

// Jar is a cookie store.
type Jar interface {
	// Cookie returns all visible cookies as "name=value" pairs joined by "; ".
	Cookie() string
	// SetCookie commits one Set-Cookie line.
	SetCookie(line string)
}

// Options are the attributes attached to a cookie when it is written.
// Zero values are omitted from the line.
type Options struct {
	// Expires is converted to an absolute UTC timestamp at write time.
	Expires time.Duration
	Path    string
	Domain  string
	Secure  bool
	// HTTPOnly is written as the httpOnly flag.
	HTTPOnly bool
	// MaxAge is written in whole seconds.
	MaxAge time.Duration
	// SameSite must be one of SameSiteStrict, SameSiteLax or SameSiteNone.
	// Any other non-empty value logs a warning and writes Lax.
	SameSite string
}

// now is replaced in tests.
var now = time.Now

// Get returns the decoded value of the named cookie.
func Get(jar Jar, name string) (any, bool) {
	raw, ok := lookupRaw(jar, name)
	if !ok {
		return nil, false
	}
	return codec.Decode(raw), true
}

// Lookup returns the named cookie decoded as a T. ok is false when the
// cookie is absent or cannot be represented as a T.
func Lookup[T any](jar Jar, name string) (T, bool) {
	raw, ok := lookupRaw(jar, name)
	if !ok {
		var zero T
		return zero, false
	}
	return codec.DecodeAs[T](raw)
}

// Set encodes value and writes it to jar with the given attributes.
func Set(jar Jar, name string, value any, opts Options) error {
	return set(jar, name, value, opts, slog.Default())
}

func set(jar Jar, name string, value any, opts Options, logger *slog.Logger) error {
	line, err := format(name, value, opts, logger)
	if err != nil {
		return err
	}
	jar.SetCookie(line)
	return nil
}

// Format returns the Set-Cookie line Set would write.
func Format(name string, value any, opts Options) (string, error) {
	return format(name, value, opts, slog.Default())
}

func format(name string, value any, opts Options, logger *slog.Logger) (string, error) {
	if name == "" {
		return "", fmt.Errorf("cookie: empty name")
	}
	encoded, err := codec.Encode(value)
	if err != nil {
		return "", fmt.Errorf("cookie %q: %w", name, err)
	}

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('=')
	b.WriteString(encoded)

	if opts.Expires != 0 {
		b.WriteString("; expires=")
		b.WriteString(now().Add(opts.Expires).UTC().Format(http.TimeFormat))
	}
	if opts.Path != "" {
		b.WriteString("; path=")
		b.WriteString(opts.Path)
	}
	if opts.Domain != "" {
		b.WriteString("; domain=")
		b.WriteString(opts.Domain)
	}
	if opts.Secure {
		b.WriteString("; secure")
	}
	if opts.HTTPOnly {
		b.WriteString("; httpOnly")
	}
	if opts.MaxAge != 0 {
		b.WriteString("; max-age=")
		b.WriteString(strconv.FormatInt(int64(opts.MaxAge/time.Second), 10))
	}
	if opts.SameSite != "" {
		b.WriteString("; SameSite=")
		b.WriteString(normalizeSameSite(opts.SameSite, logger))
	}
	return b.String(), nil
}

func normalizeSameSite(v string, logger *slog.Logger) string {
	switch v {
	case SameSiteStrict, SameSiteLax, SameSiteNone:
		return v
	}
	logger.Warn("invalid SameSite value, using Lax", "sameSite", v)
	return SameSiteLax
}

// lookupRaw scans the jar's header for name and returns its undecoded value.
func lookupRaw(jar Jar, name string) (string, bool) {
	prefix := name + "="
	for _, part := range strings.Split(jar.Cookie(), ";") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, prefix) {
			return part[len(prefix):], true
		}
	}
	return "", false
}
