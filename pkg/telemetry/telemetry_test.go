package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/trace/noop"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(WithRegistry(reg), WithNamespace("test"))

	m.PollTick("cookie")
	m.PollTick("cookie")
	m.StateChange("cookie")
	m.StoreError("storage", "set")
	m.PageFetched(FetchItems, 3, 10*time.Millisecond)
	m.PageFetched(FetchEmpty, 0, time.Millisecond)
	m.ClipboardWrite(true)
	m.ClipboardWrite(false)
	m.GeoUpdate("position")
	m.AsyncEffect("panic")

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"poll ticks", testutil.ToFloat64(m.pollTicks.WithLabelValues("cookie")), 2},
		{"state changes", testutil.ToFloat64(m.stateChanges.WithLabelValues("cookie")), 1},
		{"store errors", testutil.ToFloat64(m.storeErrors.WithLabelValues("storage", "set")), 1},
		{"page fetches items", testutil.ToFloat64(m.pageFetches.WithLabelValues(FetchItems)), 1},
		{"page fetches empty", testutil.ToFloat64(m.pageFetches.WithLabelValues(FetchEmpty)), 1},
		{"page items", testutil.ToFloat64(m.pageItems), 3},
		{"clipboard ok", testutil.ToFloat64(m.clipboardWrites.WithLabelValues("ok")), 1},
		{"clipboard error", testutil.ToFloat64(m.clipboardWrites.WithLabelValues("error")), 1},
		{"geo", testutil.ToFloat64(m.geoUpdates.WithLabelValues("position")), 1},
		{"async", testutil.ToFloat64(m.asyncEffects.WithLabelValues("panic")), 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}

	if n := testutil.CollectAndCount(m.fetchDuration); n != 1 {
		t.Errorf("fetch duration series = %d, want 1", n)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.PollTick("cookie")
	m.StateChange("cookie")
	m.StoreError("storage", "get")
	m.PageFetched(FetchError, 0, 0)
	m.ClipboardWrite(true)
	m.GeoUpdate("error")
	m.AsyncEffect("ok")
}

func TestTracer(t *testing.T) {
	tr := Tracer(noop.NewTracerProvider())
	_, span := tr.Start(context.Background(), "test")
	EndSpan(span, errors.New("boom"))

	if Tracer(nil) == nil {
		t.Error("Tracer(nil) should fall back to the global provider")
	}
}
