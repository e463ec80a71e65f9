package geo_test

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vango-dev/statesync/internal/errors"
	"github.com/vango-dev/statesync/pkg/geo"
	"github.com/vango-dev/statesync/pkg/hooktest"
	"github.com/vango-dev/statesync/pkg/reactive"
)

var berlin = geo.Position{Coords: geo.Coordinates{Latitude: 52.52, Longitude: 13.405, Accuracy: 12}}

func mountWatcher(t *testing.T, p geo.Provider, opts *geo.Options) (*geo.Watcher, *hooktest.Harness) {
	t.Helper()
	var w *geo.Watcher
	h := hooktest.Mount(t, func(o *reactive.Owner) {
		w = geo.UseGeolocation(o, p, *opts)
	})
	return w, h
}

func TestLoadingUntilFirstFix(t *testing.T) {
	sim := geo.NewSimulator()
	w, _ := mountWatcher(t, sim, &geo.Options{})

	if !w.Loading() || w.Coordinates() != nil || w.Error() != nil {
		t.Fatalf("initial reading = %+v", w.Reading())
	}
	if sim.Requests() != 1 || sim.Watches() != 1 {
		t.Errorf("requests=%d watches=%d, want 1/1", sim.Requests(), sim.Watches())
	}

	sim.SetPosition(berlin)
	c := w.Coordinates()
	if w.Loading() || c == nil || c.Latitude != 52.52 || c.Longitude != 13.405 {
		t.Errorf("reading = %+v", w.Reading())
	}
	if sim.Pending() != 0 {
		t.Errorf("pending = %d, want 0", sim.Pending())
	}
}

func TestPermissionDenied(t *testing.T) {
	sim := geo.NewSimulator()
	w, _ := mountWatcher(t, sim, &geo.Options{})

	sim.Fail(&geo.PositionError{Code: geo.PermissionDenied, Message: "user denied"})

	r := w.Reading()
	if r.Error == nil || r.Error.Code != geo.PermissionDenied {
		t.Errorf("Error = %v", r.Error)
	}
	if r.Loading {
		t.Error("Loading should be false after an error")
	}
	if r.Coordinates != nil {
		t.Errorf("Coordinates = %+v, want nil", r.Coordinates)
	}
}

func TestDeniedBeforeMount(t *testing.T) {
	sim := geo.NewSimulator()
	sim.Fail(&geo.PositionError{Code: geo.PermissionDenied})

	w, _ := mountWatcher(t, sim, &geo.Options{})
	if w.Error() == nil || w.Loading() {
		t.Errorf("reading = %+v", w.Reading())
	}
}

func TestFixClearsErrorAndErrorKeepsFix(t *testing.T) {
	sim := geo.NewSimulator()
	w, _ := mountWatcher(t, sim, &geo.Options{})

	sim.Fail(&geo.PositionError{Code: geo.PositionUnavailable})
	sim.SetPosition(berlin)
	if w.Error() != nil || w.Coordinates() == nil {
		t.Fatalf("after fix reading = %+v", w.Reading())
	}

	sim.Fail(&geo.PositionError{Code: geo.PositionUnavailable})
	if w.Error() == nil || w.Coordinates() == nil {
		t.Errorf("after second failure reading = %+v", w.Reading())
	}
}

func TestTimeout(t *testing.T) {
	sim := geo.NewSimulator()
	w, _ := mountWatcher(t, sim, &geo.Options{Timeout: 10 * time.Millisecond})

	hooktest.Eventually(t, func() bool {
		err := w.Error()
		return err != nil && err.Code == geo.Timeout
	}, 0, "request should time out")
}

func TestUnmountClearsWatch(t *testing.T) {
	sim := geo.NewSimulator()
	w, h := mountWatcher(t, sim, &geo.Options{})

	h.Unmount()
	if sim.Watches() != 0 {
		t.Errorf("watches = %d, want 0", sim.Watches())
	}
	hooktest.Eventually(t, func() bool { return sim.Pending() == 0 }, 0, "pending request dropped")

	sim.SetPosition(berlin)
	if w.Coordinates() != nil {
		t.Error("fix delivered after unmount")
	}
}

func TestOptionsChangeResubscribes(t *testing.T) {
	sim := geo.NewSimulator()
	opts := geo.Options{MaximumAge: time.Minute}
	_, h := mountWatcher(t, sim, &opts)

	h.Rerender()
	if sim.Requests() != 1 {
		t.Errorf("equal options re-subscribed: requests = %d", sim.Requests())
	}

	opts.EnableHighAccuracy = true
	h.Rerender()
	if sim.Requests() != 2 {
		t.Errorf("requests = %d, want 2", sim.Requests())
	}
	if sim.Watches() != 1 {
		t.Errorf("watches = %d, want 1 (old watch cleared)", sim.Watches())
	}
}

func TestWatchIDsAreUUIDs(t *testing.T) {
	sim := geo.NewSimulator()
	id := sim.Watch(geo.Options{}, func(geo.Position) {}, func(*geo.PositionError) {})
	if _, err := uuid.Parse(string(id)); err != nil {
		t.Errorf("watch id %q is not a uuid: %v", id, err)
	}
	sim.ClearWatch(id)
	sim.ClearWatch("unknown")
	if sim.Watches() != 0 {
		t.Errorf("watches = %d", sim.Watches())
	}
}

func TestPositionErrorString(t *testing.T) {
	tests := []struct {
		err  *geo.PositionError
		want string
	}{
		{&geo.PositionError{Code: geo.PermissionDenied}, "geolocation: permission denied"},
		{&geo.PositionError{Code: geo.Timeout, Message: "slow"}, "geolocation: timeout: slow"},
		{&geo.PositionError{Code: 7}, "geolocation: ErrorCode(7)"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestNilProviderPanics(t *testing.T) {
	defer func() {
		if r := recover(); !errors.HasCode(r, "H005") {
			t.Fatalf("expected H005 panic, got %v", r)
		}
	}()
	reactive.NewOwner(nil).Render(func(o *reactive.Owner) {
		geo.UseGeolocation(o, nil, geo.Options{})
	})
}
