// Package clock abstracts wall time and deferred callbacks so canvas timing
// (settle windows, lock expiry, day rollover) can run against a virtual clock.
package clock

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
	// AfterFunc runs f once after d. The returned Timer can cancel it.
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	// Stop cancels the callback. It reports whether the call stopped it
	// before it ran.
	Stop() bool
}

type realClock struct{}

// Real returns the process wall clock.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Slot holds at most one pending callback. Scheduling replaces the pending
// callback instead of stacking a second one.
type Slot struct {
	clk Clock

	mu    sync.Mutex
	timer Timer
	gen   uint64
}

func NewSlot(clk Clock) *Slot {
	if clk == nil {
		clk = Real()
	}
	return &Slot{clk: clk}
}

// Schedule arms f to run after d, cancelling whatever was pending.
func (s *Slot) Schedule(d time.Duration, f func()) {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timer = s.clk.AfterFunc(d, func() {
		s.mu.Lock()
		if s.gen != gen {
			// Replaced after the timer fired but before we got the lock.
			s.mu.Unlock()
			return
		}
		s.timer = nil
		s.mu.Unlock()
		f()
	})
	s.mu.Unlock()
}

// Cancel drops the pending callback, if any. It reports whether one was pending.
func (s *Slot) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == nil {
		return false
	}
	s.timer.Stop()
	s.timer = nil
	s.gen++
	return true
}

// Pending reports whether a callback is armed.
func (s *Slot) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}
