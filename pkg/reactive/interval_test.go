package reactive

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestIntervalTicks(t *testing.T) {
	var n atomic.Int32
	task := Interval(5*time.Millisecond, func() { n.Add(1) })
	defer task.Stop()

	deadline := time.Now().Add(time.Second)
	for n.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("ticks = %d, want >= 3", n.Load())
		}
		time.Sleep(time.Millisecond)
	}
	if task.Ticks() < 3 {
		t.Errorf("Ticks = %d, want >= 3", task.Ticks())
	}
}

func TestIntervalImmediate(t *testing.T) {
	fired := make(chan struct{}, 1)
	task := Interval(time.Hour, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	}, IntervalImmediate())
	defer task.Stop()

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("immediate tick did not fire")
	}
}

func TestIntervalStop(t *testing.T) {
	var n atomic.Int32
	task := Interval(2*time.Millisecond, func() { n.Add(1) })
	time.Sleep(10 * time.Millisecond)

	task.Stop()
	task.Stop()
	if !task.Stopped() {
		t.Fatal("Stopped should be true after Stop")
	}

	// Allow an in-flight tick to finish, then make sure no new ones start.
	time.Sleep(5 * time.Millisecond)
	after := n.Load()
	time.Sleep(20 * time.Millisecond)
	if n.Load() != after {
		t.Errorf("ticks continued after Stop: %d -> %d", after, n.Load())
	}
}

func TestIntervalStopFromTick(t *testing.T) {
	var n atomic.Int32
	var task *Task
	started := make(chan struct{})
	task = Interval(2*time.Millisecond, func() {
		<-started
		n.Add(1)
		task.Stop()
	})
	close(started)

	deadline := time.Now().Add(time.Second)
	for !task.Stopped() {
		if time.Now().After(deadline) {
			t.Fatal("task did not stop itself")
		}
		time.Sleep(time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)
	if n.Load() != 1 {
		t.Errorf("ticks = %d, want 1", n.Load())
	}
}
