// Package scheduler provides the single-slot, cancellable phase timer used by sessions.
//
// Every Schedule or Cancel bumps a generation counter. Callbacks receive the
// generation they were armed with and must check Current before mutating
// anything, so a timer that fires concurrently with a phase change becomes a
// no-op instead of applying stale work.
package scheduler

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Scheduler holds at most one pending task.
type Scheduler struct {
	mu         sync.Mutex
	clock      clockwork.Clock
	generation uint64
	timer      clockwork.Timer
	startedAt  time.Time
	duration   time.Duration
	fired      bool
}

// New returns a scheduler driven by clock.
func New(clock clockwork.Clock) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{clock: clock}
}

// Schedule replaces any pending task with fn, to run after d.
// It returns the generation fn will be invoked with.
func (s *Scheduler) Schedule(d time.Duration, fn func(gen uint64)) uint64 {
	if d < 0 {
		d = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.generation++
	gen := s.generation
	s.startedAt = s.clock.Now()
	s.duration = d
	s.fired = false
	s.timer = s.clock.AfterFunc(d, func() {
		// Callers arm timers while holding their own locks; never run fn inline.
		go s.fire(gen, fn)
	})
	return gen
}

func (s *Scheduler) fire(gen uint64, fn func(gen uint64)) {
	s.mu.Lock()
	if s.generation == gen {
		s.fired = true
	}
	s.mu.Unlock()
	fn(gen)
}

// Cancel drops the pending task, if any, and invalidates its generation.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.generation++
	s.duration = 0
	s.fired = false
}

// Current reports whether gen is still the live generation.
func (s *Scheduler) Current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation == gen
}

// Pending reports whether a task is armed and has not fired yet.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil && !s.fired
}

// Elapsed is the time since the current task was armed.
func (s *Scheduler) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer == nil {
		return 0
	}
	elapsed := s.clock.Since(s.startedAt)
	if elapsed > s.duration {
		return s.duration
	}
	return elapsed
}

// Remaining is the time until the current task fires, never negative.
func (s *Scheduler) Remaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer == nil {
		return 0
	}
	remaining := s.duration - s.clock.Since(s.startedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ElapsedFraction is Elapsed over the armed duration, in [0, 1].
func (s *Scheduler) ElapsedFraction() float64 {
	s.mu.Lock()
	d := s.duration
	s.mu.Unlock()

	if d <= 0 {
		return 1
	}
	return float64(s.Elapsed()) / float64(d)
}

func (s *Scheduler) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
