// Package rollover runs the daily batch re-containment at a fixed local time.
package rollover

import (
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"clarity-canvas/internal/clock"
	"clarity-canvas/internal/mutate"
	"clarity-canvas/internal/store"
)

// Runner performs one rollover pass.
type Runner interface {
	RolloverDefault() (mutate.RolloverResult, error)
}

const DefaultRetryDelay = time.Minute

type Options struct {
	Runner Runner
	Clock  clock.Clock
	Logger *slog.Logger
	// At is the local wall time, HH:MM.
	At       string
	Location *time.Location
	// RetryDelay is how long to wait after a busy pass before trying again.
	RetryDelay time.Duration
	// OnRun receives every result, including busy ones.
	OnRun func(mutate.RolloverResult, error)
}

type Scheduler struct {
	run        Runner
	clk        clock.Clock
	log        *slog.Logger
	hour, min  int
	loc        *time.Location
	retryDelay time.Duration
	onRun      func(mutate.RolloverResult, error)
	slot       *clock.Slot

	mu      sync.Mutex
	started bool
	next    time.Time
	runs    int
}

func New(opts Options) (*Scheduler, error) {
	at := strings.TrimSpace(opts.At)
	if at == "" {
		at = "00:00"
	}
	h, m, err := store.ParseClock(at)
	if err != nil {
		return nil, err
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	retry := opts.RetryDelay
	if retry <= 0 {
		retry = DefaultRetryDelay
	}
	return &Scheduler{
		run:        opts.Runner,
		clk:        clk,
		log:        log,
		hour:       h,
		min:        m,
		loc:        loc,
		retryDelay: retry,
		onRun:      opts.OnRun,
		slot:       clock.NewSlot(clk),
	}, nil
}

// Next returns the first scheduled instant strictly after now.
func (s *Scheduler) Next(now time.Time) time.Time {
	local := now.In(s.loc)
	at := time.Date(local.Year(), local.Month(), local.Day(), s.hour, s.min, 0, 0, s.loc)
	if !at.After(local) {
		at = time.Date(local.Year(), local.Month(), local.Day()+1, s.hour, s.min, 0, 0, s.loc)
	}
	return at
}

// Start arms the scheduler. Calling Start twice is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()
	s.armAt(s.Next(s.clk.Now()))
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.started = false
	s.next = time.Time{}
	s.mu.Unlock()
	s.slot.Cancel()
}

// NextRun returns the armed instant, zero when stopped.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

func (s *Scheduler) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

func (s *Scheduler) armAt(at time.Time) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.next = at
	s.mu.Unlock()
	d := at.Sub(s.clk.Now())
	if d < 0 {
		d = 0
	}
	s.slot.Schedule(d, s.fire)
}

func (s *Scheduler) fire() {
	res, err := s.run.RolloverDefault()
	s.mu.Lock()
	s.runs++
	s.mu.Unlock()

	switch {
	case err != nil:
		s.log.Warn("rollover: pass failed", "err", err)
	case res.Reason == mutate.ReasonBusy:
		s.log.Info("rollover: canvas busy, retrying", "in", s.retryDelay)
	case res.Reason == mutate.ReasonSuccess:
		s.log.Info("rollover: moved tasks", "moved", res.MovedCount, "skipped", res.Skipped)
	default:
		s.log.Info("rollover: nothing moved", "reason", res.Reason)
	}
	if s.onRun != nil {
		s.onRun(res, err)
	}

	if err == nil && res.Reason == mutate.ReasonBusy {
		s.armAt(s.clk.Now().Add(s.retryDelay))
		return
	}
	s.armAt(s.Next(s.clk.Now()))
}
