package reactive

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/statesync/internal/errors"
	"github.com/vango-dev/statesync/pkg/telemetry"
)

// DebugMode enables hook order validation on every render.
var DebugMode = false

// HookType identifies the type of hook call for order validation.
type HookType uint8

const (
	HookSignal HookType = iota + 1
	HookRef
	HookEffect
	HookAsyncEffect
	HookCookie
	HookStorage
	HookScroll
	HookGeolocation
)

// String returns a human-readable name for the hook type.
func (h HookType) String() string {
	switch h {
	case HookSignal:
		return "Signal"
	case HookRef:
		return "Ref"
	case HookEffect:
		return "Effect"
	case HookAsyncEffect:
		return "AsyncEffect"
	case HookCookie:
		return "CookieState"
	case HookStorage:
		return "StorageState"
	case HookScroll:
		return "InfiniteScroll"
	case HookGeolocation:
		return "Geolocation"
	default:
		return "Unknown"
	}
}

// Owner represents a component instance that owns hook state.
// When an Owner is disposed, its children are disposed first (last created
// first), then its cleanups run in reverse registration order.
type Owner struct {
	id uint64

	// parent is nil for the root Owner.
	parent *Owner

	children   []*Owner
	childrenMu sync.Mutex

	// cleanups are registered via OnCleanup.
	cleanups   []func()
	cleanupsMu sync.Mutex

	// values stores scoped values (see Provide/Lookup).
	values   map[any]any
	valuesMu sync.RWMutex

	logger         *slog.Logger
	metrics        *telemetry.Metrics
	tracerProvider trace.TracerProvider

	disposed atomic.Bool

	// Dev-mode hook order tracking (only used when DebugMode is true)
	hookOrder   []HookType
	hookIndex   int
	renderCount int

	// Hook slot storage for stable identity across renders.
	hookSlots   []any
	hookSlotIdx int
}

// OwnerOption configures an Owner.
type OwnerOption func(*Owner)

// WithLogger sets the logger hooks of this owner (and its children) use.
func WithLogger(l *slog.Logger) OwnerOption {
	return func(o *Owner) {
		o.logger = l
	}
}

// WithMetrics sets the Prometheus collectors hooks record into.
func WithMetrics(m *telemetry.Metrics) OwnerOption {
	return func(o *Owner) {
		o.metrics = m
	}
}

// WithTracerProvider sets the tracer provider for hook spans.
func WithTracerProvider(tp trace.TracerProvider) OwnerOption {
	return func(o *Owner) {
		o.tracerProvider = tp
	}
}

// NewOwner creates a new Owner with the given parent.
// Logger, metrics and tracer provider are inherited from the parent unless
// overridden by options. If parent is nil, creates a root Owner.
func NewOwner(parent *Owner, opts ...OwnerOption) *Owner {
	o := &Owner{
		id:     nextID(),
		parent: parent,
	}
	if parent != nil {
		o.logger = parent.logger
		o.metrics = parent.metrics
		o.tracerProvider = parent.tracerProvider
	}
	for _, opt := range opts {
		opt(o)
	}

	if parent != nil {
		parent.addChild(o)
	}

	return o
}

// ID returns the unique identifier for this Owner.
func (o *Owner) ID() uint64 {
	return o.id
}

// Parent returns the parent Owner, or nil if this is a root Owner.
func (o *Owner) Parent() *Owner {
	return o.parent
}

// Root returns the top of this owner's hierarchy.
func (o *Owner) Root() *Owner {
	r := o
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// IsDisposed returns true if this Owner has been disposed.
func (o *Owner) IsDisposed() bool {
	return o.disposed.Load()
}

// Logger returns the owner's logger, falling back to slog.Default().
func (o *Owner) Logger() *slog.Logger {
	if o.logger != nil {
		return o.logger
	}
	return slog.Default()
}

// Metrics returns the owner's collectors. The result may be nil; its
// methods are nil-safe.
func (o *Owner) Metrics() *telemetry.Metrics {
	return o.metrics
}

// Tracer returns the statesync tracer for this owner.
func (o *Owner) Tracer() trace.Tracer {
	return telemetry.Tracer(o.tracerProvider)
}

func (o *Owner) addChild(child *Owner) {
	o.childrenMu.Lock()
	defer o.childrenMu.Unlock()
	o.children = append(o.children, child)
}

func (o *Owner) removeChild(child *Owner) {
	o.childrenMu.Lock()
	defer o.childrenMu.Unlock()

	for i, c := range o.children {
		if c == child {
			o.children = append(o.children[:i], o.children[i+1:]...)
			return
		}
	}
}

// OnCleanup registers a cleanup function to run when this Owner is disposed.
func (o *Owner) OnCleanup(fn func()) {
	if o.disposed.Load() {
		// Already disposed, run cleanup immediately
		fn()
		return
	}

	o.cleanupsMu.Lock()
	defer o.cleanupsMu.Unlock()
	o.cleanups = append(o.cleanups, fn)
}

// Provide stores a scoped value on this owner.
func (o *Owner) Provide(key, value any) {
	o.valuesMu.Lock()
	defer o.valuesMu.Unlock()
	if o.values == nil {
		o.values = make(map[any]any)
	}
	o.values[key] = value
}

// Lookup returns the nearest value provided for key on this owner or an
// ancestor.
func (o *Owner) Lookup(key any) (any, bool) {
	for cur := o; cur != nil; cur = cur.parent {
		cur.valuesMu.RLock()
		v, ok := cur.values[key]
		cur.valuesMu.RUnlock()
		if ok {
			return v, true
		}
	}
	return nil, false
}

// Dispose disposes this Owner and all its children and runs its cleanups.
// After disposal, the Owner cannot render.
func (o *Owner) Dispose() {
	if o.disposed.Swap(true) {
		return
	}

	if o.parent != nil {
		o.parent.removeChild(o)
	}

	o.childrenMu.Lock()
	children := make([]*Owner, len(o.children))
	copy(children, o.children)
	o.children = nil
	o.childrenMu.Unlock()

	for i := len(children) - 1; i >= 0; i-- {
		children[i].Dispose()
	}

	o.cleanupsMu.Lock()
	cleanups := o.cleanups
	o.cleanups = nil
	o.cleanupsMu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}

// =============================================================================
// Render Lifecycle
// =============================================================================

// StartRender is called at the beginning of a component render.
// It resets the hook slot index, and in debug mode the order validation index.
func (o *Owner) StartRender() {
	if o.disposed.Load() {
		panic(errors.New("H007").WithDetailf("owner %d", o.id))
	}
	o.hookSlotIdx = 0
	if DebugMode {
		o.hookIndex = 0
	}
}

// EndRender is called at the end of a component render.
// In debug mode, it validates that all expected hooks were called.
func (o *Owner) EndRender() {
	if !DebugMode {
		return
	}
	if o.renderCount == 0 {
		o.renderCount = 1
	} else if o.hookIndex < len(o.hookOrder) {
		panic(errors.New("H006").WithDetailf("expected %d hooks, got %d", len(o.hookOrder), o.hookIndex))
	}
}

// Render runs fn as one render of this owner.
func (o *Owner) Render(fn func(o *Owner)) {
	o.StartRender()
	fn(o)
	o.EndRender()
}

// TrackHook records a hook call during render for order validation.
func (o *Owner) TrackHook(ht HookType) {
	if !DebugMode {
		return
	}

	if o.renderCount == 0 {
		o.hookOrder = append(o.hookOrder, ht)
	} else {
		if o.hookIndex >= len(o.hookOrder) {
			panic(errors.New("H006").WithDetailf("extra %s hook at index %d", ht, o.hookIndex))
		}
		if expected := o.hookOrder[o.hookIndex]; expected != ht {
			panic(errors.New("H006").WithDetailf("index %d: expected %s, got %s", o.hookIndex, expected, ht))
		}
	}
	o.hookIndex++
}

// UseHookSlot returns the stored value for the current hook slot, or nil on
// the first render. Callers create the value and pass it to SetHookSlot.
func (o *Owner) UseHookSlot() any {
	idx := o.hookSlotIdx
	o.hookSlotIdx++

	if idx < len(o.hookSlots) {
		return o.hookSlots[idx]
	}
	return nil
}

// SetHookSlot stores a value in the current hook slot.
// Must be called after UseHookSlot returns nil (first render).
func (o *Owner) SetHookSlot(value any) {
	o.hookSlots = append(o.hookSlots, value)
}

// UseSlot is the typed form of UseHookSlot/SetHookSlot. On the first render
// it stores init(); afterwards it returns the stored *T. A slot holding a
// different type means hooks were called in a different order.
func UseSlot[T any](o *Owner, ht HookType, init func() *T) *T {
	MustOwner(o, ht.String())
	o.TrackHook(ht)

	slot := o.UseHookSlot()
	if slot == nil {
		v := init()
		o.SetHookSlot(v)
		return v
	}
	v, ok := slot.(*T)
	if !ok {
		panic(errors.New("H006").WithDetailf("%s hook found a %T slot", ht, slot))
	}
	return v
}

// MustOwner panics with a descriptive error if o is nil.
func MustOwner(o *Owner, hook string) {
	if o == nil {
		panic(errors.New("H002").WithDetail(fmt.Sprintf("%s called with a nil owner", hook)))
	}
}
