// Package uatestutil provides fakes shared across this module's package
// tests: a manually driven Timer and a recording Session, replacing the
// teacher's HTTP/outbound test doubles with the equivalents this core's
// packages need.
package uatestutil

import (
	"sync"
	"time"

	"github.com/coriolis-automation/opcuacore/internal/uasession"
	"github.com/coriolis-automation/opcuacore/internal/uatimer"
)

// FakeTimer is a manually driven uatimer.Timer: callbacks only run when the
// test calls Fire, never on a real clock. It implements uatimer.Timer.
type FakeTimer struct {
	mu       sync.Mutex
	nextID   uatimer.CallbackID
	repeated map[uatimer.CallbackID]func()
	delayed  map[uatimer.CallbackID]func()
}

var _ uatimer.Timer = (*FakeTimer)(nil)

// NewFakeTimer constructs an empty FakeTimer.
func NewFakeTimer() *FakeTimer {
	return &FakeTimer{
		repeated: make(map[uatimer.CallbackID]func()),
		delayed:  make(map[uatimer.CallbackID]func()),
	}
}

func (f *FakeTimer) AddRepeated(_ time.Duration, fn func()) uatimer.CallbackID {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := f.nextID
	f.repeated[id] = fn
	return id
}

func (f *FakeTimer) AddDelayed(_ time.Duration, fn func()) uatimer.CallbackID {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := f.nextID
	f.delayed[id] = fn
	return id
}

func (f *FakeTimer) Remove(id uatimer.CallbackID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.repeated, id)
	delete(f.delayed, id)
}

// Fire invokes every registered repeated callback once, and every pending
// delayed callback once (removing the delayed ones after firing). All
// repeated callbacks run before the delayed ones; within each group the
// order follows map iteration and can differ from one call to the next.
func (f *FakeTimer) Fire() {
	f.mu.Lock()
	reps := make([]func(), 0, len(f.repeated))
	for _, fn := range f.repeated {
		reps = append(reps, fn)
	}
	dels := f.delayed
	f.delayed = make(map[uatimer.CallbackID]func())
	f.mu.Unlock()

	for _, fn := range reps {
		fn()
	}
	for _, fn := range dels {
		fn()
	}
}

// FakeSession records every response sent to it and reports Alive() as
// configured by the test.
type FakeSession struct {
	mu        sync.Mutex
	id        uasession.SessionID
	alive     bool
	Responses []uasession.Response
}

var _ uasession.Session = (*FakeSession)(nil)

// NewFakeSession constructs an alive FakeSession with the given id.
func NewFakeSession(id uasession.SessionID) *FakeSession {
	return &FakeSession{id: id, alive: true}
}

func (s *FakeSession) ID() uasession.SessionID { return s.id }

func (s *FakeSession) SendResponse(r uasession.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Responses = append(s.Responses, r)
	return nil
}

func (s *FakeSession) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alive
}

// SetAlive toggles the session's liveness for failure-path tests.
func (s *FakeSession) SetAlive(alive bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alive = alive
}

// Sent returns a snapshot of responses recorded so far.
func (s *FakeSession) Sent() []uasession.Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]uasession.Response, len(s.Responses))
	copy(out, s.Responses)
	return out
}
