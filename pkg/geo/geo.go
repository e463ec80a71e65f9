// Package geo mirrors a location provider's position into reactive state.
//
// UseGeolocation requests one position immediately and keeps a continuous
// watch open until the owner is disposed or the options change:
//
//	loc := geo.UseGeolocation(o, provider, geo.Options{EnableHighAccuracy: true})
//	switch {
//	case loc.Loading():
//	case loc.Error() != nil:
//	default:
//	    c := loc.Coordinates()
//	}
package geo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vango-dev/statesync/internal/errors"
	"github.com/vango-dev/statesync/pkg/reactive"
)

// Options are passed through to the provider.
type Options struct {
	// EnableHighAccuracy asks for the most precise fix available.
	EnableHighAccuracy bool
	// Timeout bounds each position request. Zero means no limit.
	Timeout time.Duration
	// MaximumAge is the oldest cached position acceptable. Zero always
	// asks for a fresh fix.
	MaximumAge time.Duration
}

// Coordinates is a position fix. Optional fields are nil when the device
// does not report them.
type Coordinates struct {
	Latitude         float64
	Longitude        float64
	Altitude         *float64
	Accuracy         float64
	AltitudeAccuracy *float64
	Heading          *float64
	Speed            *float64
}

// Position is a timestamped fix.
type Position struct {
	Coords    Coordinates
	Timestamp time.Time
}

// ErrorCode classifies a PositionError.
type ErrorCode int

const (
	PermissionDenied    ErrorCode = 1
	PositionUnavailable ErrorCode = 2
	Timeout             ErrorCode = 3
)

func (c ErrorCode) String() string {
	switch c {
	case PermissionDenied:
		return "permission denied"
	case PositionUnavailable:
		return "position unavailable"
	case Timeout:
		return "timeout"
	default:
		return fmt.Sprintf("ErrorCode(%d)", int(c))
	}
}

// PositionError is a failed position request.
type PositionError struct {
	Code    ErrorCode
	Message string
}

func (e *PositionError) Error() string {
	if e.Message == "" {
		return "geolocation: " + e.Code.String()
	}
	return "geolocation: " + e.Code.String() + ": " + e.Message
}

// WatchID identifies a watch started with Provider.Watch.
type WatchID string

// Provider is a device location service. Callbacks may run on any
// goroutine.
type Provider interface {
	// CurrentPosition requests one fix and calls exactly one of onOK or
	// onErr, unless ctx is cancelled first.
	CurrentPosition(ctx context.Context, opts Options, onOK func(Position), onErr func(*PositionError))
	// Watch reports every fix or failure until ClearWatch is called.
	Watch(opts Options, onOK func(Position), onErr func(*PositionError)) WatchID
	// ClearWatch stops a watch. Unknown IDs are ignored.
	ClearWatch(id WatchID)
}

// Reading is the state exposed by a Watcher.
type Reading struct {
	Loading     bool
	Error       *PositionError
	Coordinates *Coordinates
	Timestamp   time.Time
}

// Watcher is the handle returned by UseGeolocation.
type Watcher struct {
	reading *reactive.Signal[Reading]
}

// Loading reports whether no fix or error has arrived yet.
func (w *Watcher) Loading() bool { return w.reading.Get().Loading }

// Error returns the last error, cleared by the next successful fix.
func (w *Watcher) Error() *PositionError { return w.reading.Get().Error }

// Coordinates returns the last fix, or nil before the first one.
func (w *Watcher) Coordinates() *Coordinates { return w.reading.Get().Coordinates }

// Reading returns a snapshot of the whole state.
func (w *Watcher) Reading() Reading { return w.reading.Get() }

// Subscribe calls fn after every change. The returned function unsubscribes.
func (w *Watcher) Subscribe(fn func(Reading)) func() {
	return w.reading.Subscribe(fn)
}

// UseGeolocation subscribes to p and mirrors its fixes and errors.
//
// A successful fix clears any previous error and updates the coordinates. A
// failure sets the error and stops loading; coordinates from an earlier fix
// are kept. The watch is cleared when o is disposed, and a changed provider
// or options value subscribes again.
func UseGeolocation(o *reactive.Owner, p Provider, opts Options) *Watcher {
	reactive.MustOwner(o, "geo.UseGeolocation")
	if p == nil {
		panic(errors.New("H005").WithDetail("geo.UseGeolocation: provider is required"))
	}

	w := reactive.UseSlot(o, reactive.HookGeolocation, func() *Watcher {
		return &Watcher{reading: reactive.NewSignal(Reading{Loading: true})}
	})

	logger := o.Logger().With("hook", "geolocation")
	metrics := o.Metrics()

	reactive.UseEffect(o, func() reactive.Cleanup {
		var (
			mu     sync.Mutex
			active = true
		)
		live := func() bool {
			mu.Lock()
			defer mu.Unlock()
			return active
		}

		onOK := func(pos Position) {
			if !live() {
				return
			}
			metrics.GeoUpdate("position")
			coords := pos.Coords
			w.reading.Set(Reading{Coordinates: &coords, Timestamp: pos.Timestamp})
		}
		onErr := func(err *PositionError) {
			if !live() {
				return
			}
			metrics.GeoUpdate("error")
			logger.Warn("geolocation failed", "code", int(err.Code), "error", err.Message)
			w.reading.Update(func(r Reading) Reading {
				r.Loading = false
				r.Error = err
				return r
			})
		}

		ctx, cancel := context.WithCancel(context.Background())
		p.CurrentPosition(ctx, opts, onOK, onErr)
		id := p.Watch(opts, onOK, onErr)

		return func() {
			mu.Lock()
			active = false
			mu.Unlock()
			cancel()
			p.ClearWatch(id)
		}
	}, p, opts)

	return w
}
