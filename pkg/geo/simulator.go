package geo

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Simulator is an in-memory Provider. Positions and errors pushed with
// SetPosition and Fail are delivered to every watch and to pending
// CurrentPosition requests.
type Simulator struct {
	mu       sync.Mutex
	current  *Position
	failure  *PositionError
	watches  map[WatchID]callbacks
	pending  map[uint64]callbacks
	nextReq  uint64
	requests int
}

type callbacks struct {
	ok  func(Position)
	err func(*PositionError)
}

// NewSimulator returns a simulator with no position.
func NewSimulator() *Simulator {
	return &Simulator{
		watches: make(map[WatchID]callbacks),
		pending: make(map[uint64]callbacks),
	}
}

// SetPosition records pos as the current fix and delivers it.
func (s *Simulator) SetPosition(pos Position) {
	if pos.Timestamp.IsZero() {
		pos.Timestamp = time.Now()
	}

	s.mu.Lock()
	s.current = &pos
	s.failure = nil
	targets := s.drainLocked()
	s.mu.Unlock()

	for _, cb := range targets {
		cb.ok(pos)
	}
}

// Fail delivers err to every watch and pending request. Later
// CurrentPosition calls fail with err until the next SetPosition.
func (s *Simulator) Fail(err *PositionError) {
	s.mu.Lock()
	s.failure = err
	targets := s.drainLocked()
	s.mu.Unlock()

	for _, cb := range targets {
		cb.err(err)
	}
}

// drainLocked returns all watches plus the pending one-shot requests, which
// are removed.
func (s *Simulator) drainLocked() []callbacks {
	targets := make([]callbacks, 0, len(s.watches)+len(s.pending))
	for _, cb := range s.watches {
		targets = append(targets, cb)
	}
	for id, cb := range s.pending {
		targets = append(targets, cb)
		delete(s.pending, id)
	}
	return targets
}

// CurrentPosition implements Provider. With no fix or failure recorded the
// request waits for the next SetPosition or Fail, or fails with Timeout
// after opts.Timeout.
func (s *Simulator) CurrentPosition(ctx context.Context, opts Options, onOK func(Position), onErr func(*PositionError)) {
	s.mu.Lock()
	s.requests++
	if s.current != nil {
		pos := *s.current
		s.mu.Unlock()
		onOK(pos)
		return
	}
	if s.failure != nil {
		err := s.failure
		s.mu.Unlock()
		onErr(err)
		return
	}
	id := s.nextReq
	s.nextReq++
	s.pending[id] = callbacks{ok: onOK, err: onErr}
	s.mu.Unlock()

	go s.expire(ctx, id, opts.Timeout)
}

// expire drops a pending request when ctx ends and fails it on timeout.
func (s *Simulator) expire(ctx context.Context, id uint64, timeout time.Duration) {
	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case <-ctx.Done():
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	case <-timer:
		s.mu.Lock()
		cb, ok := s.pending[id]
		delete(s.pending, id)
		s.mu.Unlock()
		if ok {
			cb.err(&PositionError{Code: Timeout, Message: "position request timed out"})
		}
	}
}

// Watch implements Provider. A recorded fix is delivered immediately.
func (s *Simulator) Watch(_ Options, onOK func(Position), onErr func(*PositionError)) WatchID {
	id := WatchID(uuid.NewString())

	s.mu.Lock()
	s.watches[id] = callbacks{ok: onOK, err: onErr}
	current := s.current
	s.mu.Unlock()

	if current != nil {
		onOK(*current)
	}
	return id
}

// ClearWatch implements Provider.
func (s *Simulator) ClearWatch(id WatchID) {
	s.mu.Lock()
	delete(s.watches, id)
	s.mu.Unlock()
}

// Watches returns the number of active watches.
func (s *Simulator) Watches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watches)
}

// Requests returns how many CurrentPosition calls were made.
func (s *Simulator) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// Pending returns the number of unanswered CurrentPosition requests.
func (s *Simulator) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
