package cookie

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MemoryJar is an in-memory Jar. It honours Max-Age and Expires: a cookie
// written with a non-positive max-age or a past expiry is deleted, and
// expired cookies are hidden from Cookie.
// The zero value is not usable; call NewMemoryJar.
type MemoryJar struct {
	mu      sync.Mutex
	entries map[string]jarEntry
	order   []string
	now     func() time.Time
}

type jarEntry struct {
	value   string
	expires time.Time
}

// NewMemoryJar returns an empty jar.
func NewMemoryJar() *MemoryJar {
	return &MemoryJar{
		entries: make(map[string]jarEntry),
		now:     time.Now,
	}
}

// Cookie implements Jar. Cookies are listed in the order they were first set.
func (j *MemoryJar) Cookie() string {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	parts := make([]string, 0, len(j.order))
	for _, name := range j.order {
		e := j.entries[name]
		if !e.expires.IsZero() && !now.Before(e.expires) {
			continue
		}
		parts = append(parts, name+"="+e.value)
	}
	return strings.Join(parts, "; ")
}

// SetCookie implements Jar.
func (j *MemoryJar) SetCookie(line string) {
	name, value, attrs, ok := parseLine(line)
	if !ok {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	e := jarEntry{value: value}
	if v, ok := attrs["expires"]; ok {
		if t, err := http.ParseTime(v); err == nil {
			e.expires = t
		}
	}
	// Max-Age wins over Expires.
	if v, ok := attrs["max-age"]; ok {
		if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
			if secs <= 0 {
				j.deleteLocked(name)
				return
			}
			e.expires = j.now().Add(time.Duration(secs) * time.Second)
		}
	}
	if !e.expires.IsZero() && !j.now().Before(e.expires) {
		j.deleteLocked(name)
		return
	}

	if _, exists := j.entries[name]; !exists {
		j.order = append(j.order, name)
	}
	j.entries[name] = e
}

// Delete removes a cookie as if it had expired.
func (j *MemoryJar) Delete(name string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.deleteLocked(name)
}

// Len returns the number of stored cookies, expired or not.
func (j *MemoryJar) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}

func (j *MemoryJar) deleteLocked(name string) {
	if _, ok := j.entries[name]; !ok {
		return
	}
	delete(j.entries, name)
	for i, n := range j.order {
		if n == name {
			j.order = append(j.order[:i], j.order[i+1:]...)
			break
		}
	}
}

// HTTPJar is a Jar over one HTTP exchange. It starts with the request's
// Cookie header, writes each SetCookie as a Set-Cookie response header and
// reflects written cookies in later reads.
type HTTPJar struct {
	w   http.ResponseWriter
	mem *MemoryJar
}

// NewHTTPJar returns a jar seeded from r's cookies that writes to w.
func NewHTTPJar(w http.ResponseWriter, r *http.Request) *HTTPJar {
	mem := NewMemoryJar()
	for _, header := range r.Header.Values("Cookie") {
		for _, part := range strings.Split(header, ";") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			mem.SetCookie(part)
		}
	}
	return &HTTPJar{w: w, mem: mem}
}

// Cookie implements Jar.
func (j *HTTPJar) Cookie() string {
	return j.mem.Cookie()
}

// SetCookie implements Jar.
func (j *HTTPJar) SetCookie(line string) {
	j.w.Header().Add("Set-Cookie", line)
	j.mem.SetCookie(line)
}

// parseLine splits a Set-Cookie line into its name, raw value and
// attributes. Attribute names are lower-cased; flags map to "".
//
// net/http's cookie parser rejects quotes and backslashes in values, which
// JSON-encoded values contain, so lines are split by hand.
func parseLine(line string) (name, value string, attrs map[string]string, ok bool) {
	parts := strings.Split(line, ";")
	pair := strings.TrimSpace(parts[0])
	eq := strings.IndexByte(pair, '=')
	if eq <= 0 {
		return "", "", nil, false
	}
	name, value = pair[:eq], pair[eq+1:]

	attrs = make(map[string]string, len(parts)-1)
	for _, part := range parts[1:] {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		attrs[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return name, value, attrs, true
}
