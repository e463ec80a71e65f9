// Package telemetry provides Prometheus metrics and OpenTelemetry tracing
// for statesync hooks.
//
// Metrics are optional. A nil *Metrics is valid and records nothing, so hooks
// call the recording methods unconditionally:
//
//	m := telemetry.New(telemetry.WithRegistry(reg))
//	owner := reactive.NewOwner(nil, reactive.WithMetrics(m))
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Config configures the Prometheus collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "statesync").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for page fetch duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the Prometheus collectors.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "statesync",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the Prometheus collectors shared by all hooks.
type Metrics struct {
	pollTicks       *prometheus.CounterVec
	stateChanges    *prometheus.CounterVec
	storeErrors     *prometheus.CounterVec
	pageFetches     *prometheus.CounterVec
	pageItems       prometheus.Counter
	fetchDuration   prometheus.Histogram
	clipboardWrites *prometheus.CounterVec
	geoUpdates      *prometheus.CounterVec
	asyncEffects    *prometheus.CounterVec
}

// New creates and registers the collectors.
// Registering twice against the same registry panics, as with promauto.
func New(opts ...Option) *Metrics {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)

	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		}, labels)
	}

	return &Metrics{
		pollTicks:    counter("poll_ticks_total", "Polling ticks executed by state hooks", "hook"),
		stateChanges: counter("state_changes_total", "Reactive state changes observed from the backing store", "hook"),
		storeErrors:  counter("store_errors_total", "Backing store operations that failed", "hook", "op"),
		pageFetches:  counter("page_fetches_total", "Infinite scroll page fetches by outcome", "result"),
		pageItems: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "page_items_total",
			Help:        "Items appended by infinite scroll controllers",
			ConstLabels: config.ConstLabels,
		}),
		fetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "page_fetch_duration_seconds",
			Help:        "Infinite scroll page fetch duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),
		clipboardWrites: counter("clipboard_writes_total", "Clipboard writes by outcome", "result"),
		geoUpdates:      counter("geolocation_updates_total", "Geolocation callbacks by kind", "kind"),
		asyncEffects:    counter("async_effects_total", "Async effect runs by outcome", "result"),
	}
}

// Fetch outcomes for PageFetched.
const (
	FetchItems = "items"
	FetchEmpty = "empty"
	FetchError = "error"
)

// PollTick records one polling tick of hook.
func (m *Metrics) PollTick(hook string) {
	if m == nil {
		return
	}
	m.pollTicks.WithLabelValues(hook).Inc()
}

// StateChange records a state update pulled from the backing store.
func (m *Metrics) StateChange(hook string) {
	if m == nil {
		return
	}
	m.stateChanges.WithLabelValues(hook).Inc()
}

// StoreError records a failed backing store operation ("get", "set", "remove").
func (m *Metrics) StoreError(hook, op string) {
	if m == nil {
		return
	}
	m.storeErrors.WithLabelValues(hook, op).Inc()
}

// PageFetched records a page fetch outcome, its item count and duration.
func (m *Metrics) PageFetched(result string, items int, d time.Duration) {
	if m == nil {
		return
	}
	m.pageFetches.WithLabelValues(result).Inc()
	m.pageItems.Add(float64(items))
	m.fetchDuration.Observe(d.Seconds())
}

// ClipboardWrite records a clipboard write outcome.
func (m *Metrics) ClipboardWrite(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.clipboardWrites.WithLabelValues(result).Inc()
}

// GeoUpdate records a geolocation callback ("position" or "error").
func (m *Metrics) GeoUpdate(kind string) {
	if m == nil {
		return
	}
	m.geoUpdates.WithLabelValues(kind).Inc()
}

// AsyncEffect records an async effect outcome ("ok", "error" or "panic").
func (m *Metrics) AsyncEffect(result string) {
	if m == nil {
		return
	}
	m.asyncEffects.WithLabelValues(result).Inc()
}
