// Package scroll implements an infinite scroll controller: it watches a
// scrollable container and fetches the next page when the viewport nears the
// bottom.
//
// The controller is idle, loading or exhausted. It loads the current page on
// mount and again each time a scroll event finds the viewport within
// LoadTriggerOffset of the bottom. Fetches never overlap. An empty page or a
// failed fetch exhausts the controller for good; failures are logged and not
// retried.
//
//	items := reactive.UseSignal(o, []Item(nil))
//	page := reactive.UseSignal(o, 1)
//	feed := scroll.UseInfinite(o, scroll.Config[Item]{
//	    Container: list,
//	    SetData:   items.Update,
//	    Fetch:     api.Page,
//	    Page:      page.Get,
//	    SetPage:   page.Update,
//	})
//	if feed.IsLoading() { ... }
package scroll

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/vango-dev/statesync/internal/errors"
	"github.com/vango-dev/statesync/pkg/reactive"
	"github.com/vango-dev/statesync/pkg/telemetry"
)

// DefaultLoadTriggerOffset is the distance from the bottom, in pixels, at
// which the next page loads.
const DefaultLoadTriggerOffset = 50

// Metrics is a container's scroll geometry.
type Metrics struct {
	ScrollTop    float64
	ScrollHeight float64
	ClientHeight float64
}

// NearBottom reports whether the viewport is within offset of the bottom.
func (m Metrics) NearBottom(offset float64) bool {
	return m.ScrollTop+m.ClientHeight+offset >= m.ScrollHeight
}

// Container is a scrollable element.
type Container interface {
	// Metrics returns the current geometry.
	Metrics() Metrics
	// OnScroll registers fn for scroll events and returns a function that
	// removes it.
	OnScroll(fn func()) (remove func())
}

// Status is the controller state.
type Status uint8

const (
	StatusIdle Status = iota
	StatusLoading
	StatusExhausted
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

// Config configures UseInfinite. All fields except LoadTriggerOffset are
// required, and Page must return at least 1 when the controller mounts.
type Config[T any] struct {
	// Container is watched for scroll events.
	Container Container
	// SetData receives an updater that appends a fetched page.
	SetData func(update func([]T) []T)
	// Fetch returns the items of page. An empty result or an error ends
	// the feed.
	Fetch func(ctx context.Context, page int) ([]T, error)
	// Page returns the page to fetch next.
	Page func() int
	// SetPage receives an updater that advances the page after a
	// successful fetch.
	SetPage func(update func(int) int)
	// LoadTriggerOffset is the distance from the bottom that triggers a
	// load. Zero selects DefaultLoadTriggerOffset; a negative value
	// triggers only at the exact bottom.
	LoadTriggerOffset float64
}

func (c Config[T]) validate() {
	missing := ""
	switch {
	case c.Container == nil:
		missing = "Container"
	case c.Fetch == nil:
		missing = "Fetch"
	case c.Page == nil:
		missing = "Page"
	case c.SetPage == nil:
		missing = "SetPage"
	case c.SetData == nil:
		missing = "SetData"
	}
	if missing != "" {
		panic(errors.New("H003").WithDetailf("scroll.UseInfinite: %s is required", missing))
	}
	if page := c.Page(); page < 1 {
		panic(errors.New("H003").WithDetailf("scroll.UseInfinite: Page returned %d, pages start at 1", page))
	}
}

// offset resolves LoadTriggerOffset.
func (c Config[T]) offset() float64 {
	switch {
	case c.LoadTriggerOffset == 0:
		return DefaultLoadTriggerOffset
	case c.LoadTriggerOffset < 0:
		return 0
	default:
		return c.LoadTriggerOffset
	}
}

// Controller reports the state of an infinite scroll session.
type Controller struct {
	status *reactive.Signal[Status]
	check  func()
}

// IsLoading reports whether a fetch is in flight.
func (c *Controller) IsLoading() bool {
	return c.status.Get() == StatusLoading
}

// HasMore reports whether more pages may be fetched.
func (c *Controller) HasMore() bool {
	return c.status.Get() != StatusExhausted
}

// Status returns the current state.
func (c *Controller) Status() Status {
	return c.status.Get()
}

// Subscribe calls fn after every state change. The returned function
// unsubscribes.
func (c *Controller) Subscribe(fn func(Status)) func() {
	return c.status.Subscribe(fn)
}

// Check evaluates the load trigger as a scroll event would. Use it when the
// content shrank or the container grew without scrolling.
func (c *Controller) Check() {
	c.check()
}

// session is the per-owner state behind a Controller. Transitions are
// decided on state under mu; the status signal is published afterwards,
// without mu, so subscribers may call back into the controller.
type session[T any] struct {
	ctrl *Controller

	mu       sync.Mutex
	cfg      Config[T]
	state    Status
	cancel   context.CancelFunc
	disposed bool

	owner   *reactive.Owner
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// UseInfinite returns the owner's infinite scroll controller. Missing
// required Config fields panic with an error naming the field.
func UseInfinite[T any](o *reactive.Owner, cfg Config[T]) *Controller {
	reactive.MustOwner(o, "scroll.UseInfinite")
	cfg.validate()

	s := reactive.UseSlot(o, reactive.HookScroll, func() *session[T] {
		s := &session[T]{
			owner:   o,
			logger:  o.Logger().With("hook", "scroll"),
			metrics: o.Metrics(),
		}
		s.ctrl = &Controller{
			status: reactive.NewSignal(StatusIdle),
			check:  s.onScroll,
		}
		o.OnCleanup(s.dispose)
		return s
	})

	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()

	// The first page loads on mount.
	reactive.UseEffect(o, func() reactive.Cleanup {
		s.load()
		return nil
	})

	container := cfg.Container
	reactive.UseEffect(o, func() reactive.Cleanup {
		return reactive.Cleanup(container.OnScroll(s.onScroll))
	}, container)

	return s.ctrl
}

func (s *session[T]) onScroll() {
	s.mu.Lock()
	cfg, state := s.cfg, s.state
	s.mu.Unlock()

	if state != StatusIdle {
		return
	}
	if cfg.Container.Metrics().NearBottom(cfg.offset()) {
		s.load()
	}
}

// load starts a fetch of the current page unless one is running or the
// feed is exhausted.
func (s *session[T]) load() {
	s.mu.Lock()
	if s.disposed || s.state != StatusIdle {
		s.mu.Unlock()
		return
	}
	s.state = StatusLoading
	cfg := s.cfg
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	s.publish()
	go s.fetch(ctx, cfg)
}

// transition records the next state under mu and publishes it. A disposed
// session keeps its state.
func (s *session[T]) transition(next Status) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.state = next
	s.mu.Unlock()

	s.publish()
}

// publish copies the current state into the status signal. The read happens
// inside Update, so concurrent publishers always leave the latest state.
func (s *session[T]) publish() {
	s.ctrl.status.Update(func(Status) Status {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.state
	})
}

func (s *session[T]) fetch(ctx context.Context, cfg Config[T]) {
	page := cfg.Page()
	ctx, span := s.owner.Tracer().Start(ctx, "statesync.scroll.Fetch")
	span.SetAttributes(attribute.Int("page", page))

	start := time.Now()
	items, err := s.call(ctx, cfg, page)
	elapsed := time.Since(start)
	telemetry.EndSpan(span, err)

	s.mu.Lock()
	s.cancel = nil
	disposed := s.disposed
	s.mu.Unlock()
	if disposed {
		return
	}

	switch {
	case err != nil:
		s.logger.Error("page fetch failed, no more pages will load", "page", page, "error", err)
		s.metrics.PageFetched(telemetry.FetchError, 0, elapsed)
		s.transition(StatusExhausted)
	case len(items) == 0:
		s.logger.Debug("empty page, feed exhausted", "page", page)
		s.metrics.PageFetched(telemetry.FetchEmpty, 0, elapsed)
		s.transition(StatusExhausted)
	default:
		// A fresh slice, so earlier snapshots held by subscribers are never
		// written through spare capacity.
		cfg.SetData(func(prev []T) []T {
			return slices.Concat(prev, items)
		})
		cfg.SetPage(func(p int) int { return p + 1 })
		s.metrics.PageFetched(telemetry.FetchItems, len(items), elapsed)
		s.transition(StatusIdle)
	}
}

// call runs cfg.Fetch, turning a panic into an error.
func (s *session[T]) call(ctx context.Context, cfg Config[T], page int) (items []T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetch panicked: %v", r)
		}
	}()
	return cfg.Fetch(ctx, page)
}

func (s *session[T]) dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposed = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}
