package cookie

import (
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/vango-dev/statesync/internal/codec"
	"github.com/vango-dev/statesync/internal/errors"
	"github.com/vango-dev/statesync/pkg/reactive"
	"github.com/vango-dev/statesync/pkg/telemetry"
)

// DefaultPollInterval is how often UseState re-reads the jar.
const DefaultPollInterval = 700 * time.Millisecond

// StateOptions configures UseState.
type StateOptions struct {
	// Options are the attributes used for every write.
	Options

	// SkipCreation leaves an absent cookie absent instead of writing the
	// default value on first use.
	SkipCreation bool

	// PollInterval overrides DefaultPollInterval.
	PollInterval time.Duration
}

// State is the handle returned by UseState.
type State[T any] struct {
	signal *reactive.Signal[T]

	mu     sync.Mutex
	jar    Jar
	key    string
	def    T
	opts   Options
	logger *slog.Logger

	metrics *telemetry.Metrics

	// io serializes jar access with the state update that follows it, so a
	// poll cannot overwrite a concurrent Set with the value it read before.
	io sync.Mutex

	// gen invalidates polls started by a previous effect run.
	gen atomic.Uint64
	// seen is the fingerprint of the last raw value read or written.
	seen atomic.Uint64
}

// Get returns the current value.
func (s *State[T]) Get() T {
	return s.signal.Get()
}

// Set writes v to the cookie and updates the state.
func (s *State[T]) Set(v T) {
	s.io.Lock()
	defer s.io.Unlock()

	s.mu.Lock()
	jar, key, opts, logger := s.jar, s.key, s.opts, s.logger
	s.mu.Unlock()

	line, err := format(key, v, opts, logger)
	if err != nil {
		logger.Error("cookie write failed", "error", err)
		return
	}
	jar.SetCookie(line)

	if raw, ok := lookupRaw(jar, key); ok {
		s.seen.Store(fingerprint(raw, true))
	}
	s.apply(v)
}

// Remove expires the cookie and reverts the state to the default value.
func (s *State[T]) Remove() {
	s.io.Lock()
	defer s.io.Unlock()

	s.mu.Lock()
	jar, key, opts, def := s.jar, s.key, s.opts, s.def
	s.mu.Unlock()

	line := key + "=; expires=" + time.Unix(0, 0).UTC().Format(http.TimeFormat)
	if opts.Path != "" {
		line += "; path=" + opts.Path
	}
	if opts.Domain != "" {
		line += "; domain=" + opts.Domain
	}
	jar.SetCookie(line)

	s.seen.Store(fingerprint("", false))
	s.apply(def)
}

// Subscribe calls fn after every change of the value. The returned function
// unsubscribes. fn runs synchronously and must not call Set or Remove.
func (s *State[T]) Subscribe(fn func(T)) func() {
	return s.signal.Subscribe(fn)
}

func (s *State[T]) apply(v T) {
	if s.signal.Set(v) {
		s.metrics.StateChange("cookie")
	}
}

// UseState mirrors the cookie named key into state.
//
// On first use the cookie is read; when it is absent and SkipCreation is not
// set, def is written with the configured attributes. The jar is then polled
// every PollInterval and the state follows external changes. A cookie that
// disappears reverts the state to def. Polling restarts when key or jar
// changes and stops when o is disposed.
//
// An empty key panics.
func UseState[T any](o *reactive.Owner, jar Jar, key string, def T, opts StateOptions) *State[T] {
	reactive.MustOwner(o, "cookie.UseState")
	if key == "" {
		panic(errors.New("H001").WithDetail("cookie.UseState: key is required"))
	}
	if jar == nil {
		panic(errors.New("H005").WithDetail("cookie.UseState: jar is required"))
	}

	s := reactive.UseSlot(o, reactive.HookCookie, func() *State[T] {
		return &State[T]{
			signal:  reactive.NewSignal(def),
			metrics: o.Metrics(),
		}
	})

	s.mu.Lock()
	s.jar, s.def, s.opts = jar, def, opts.Options
	if s.key != key || s.logger == nil {
		s.logger = o.Logger().With("hook", "cookie", "key", key)
	}
	s.key = key
	s.mu.Unlock()

	interval := opts.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	reactive.UseEffect(o, func() reactive.Cleanup {
		s.load(opts.SkipCreation)

		gen := s.gen.Add(1)
		task := reactive.Interval(interval, func() { s.poll(gen) })
		return func() {
			task.Stop()
			s.gen.Add(1)
		}
	}, key, jar, interval)

	return s
}

// load reads the cookie for the current key, creating it when allowed.
func (s *State[T]) load(skipCreation bool) {
	s.io.Lock()
	defer s.io.Unlock()

	s.mu.Lock()
	jar, key, def, opts, logger := s.jar, s.key, s.def, s.opts, s.logger
	s.mu.Unlock()

	raw, ok := lookupRaw(jar, key)
	if !ok {
		if !skipCreation {
			if err := set(jar, key, def, opts, logger); err != nil {
				logger.Error("cookie create failed", "error", err)
			}
		}
		if raw, ok := lookupRaw(jar, key); ok {
			s.seen.Store(fingerprint(raw, true))
		} else {
			s.seen.Store(fingerprint("", false))
		}
		s.apply(def)
		return
	}

	s.seen.Store(fingerprint(raw, true))
	v, decoded := codec.DecodeAs[T](raw)
	if !decoded {
		logger.Warn("cookie value does not match state type, using default", "value", raw)
		v = def
	}
	s.apply(v)
}

// poll re-reads the cookie and applies external changes. Results from a
// poll whose generation has been superseded are dropped.
func (s *State[T]) poll(gen uint64) {
	s.io.Lock()
	defer s.io.Unlock()

	s.mu.Lock()
	jar, key, def, logger := s.jar, s.key, s.def, s.logger
	s.mu.Unlock()

	s.metrics.PollTick("cookie")
	raw, ok := lookupRaw(jar, key)
	if s.gen.Load() != gen {
		return
	}

	fp := fingerprint(raw, ok)
	if s.seen.Swap(fp) == fp {
		return
	}

	if !ok {
		logger.Debug("cookie removed externally, reverting to default")
		s.apply(def)
		return
	}
	v, decoded := codec.DecodeAs[T](raw)
	if !decoded {
		logger.Warn("cookie value does not match state type, ignoring", "value", raw)
		return
	}
	s.apply(v)
}

// fingerprint identifies a raw cookie value so unchanged polls skip decoding.
// Absent cookies hash differently from empty ones.
func fingerprint(raw string, present bool) uint64 {
	if !present {
		return xxhash.Sum64String("\x00absent")
	}
	return xxhash.Sum64String("=" + raw)
}
