package scheduler

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = time.Second

func TestSchedule_FiresAfterDuration(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New(clock)

	fired := make(chan uint64, 1)
	gen := s.Schedule(5*time.Second, func(g uint64) { fired <- g })

	clock.Advance(4 * time.Second)
	select {
	case <-fired:
		t.Fatal("fired early")
	case <-time.After(20 * time.Millisecond):
	}
	assert.True(t, s.Pending())

	clock.Advance(time.Second)
	select {
	case g := <-fired:
		assert.Equal(t, gen, g)
		assert.True(t, s.Current(g))
	case <-time.After(waitFor):
		t.Fatal("timer never fired")
	}
	assert.Eventually(t, func() bool { return !s.Pending() }, waitFor, 5*time.Millisecond)
}

func TestSchedule_ReplacesPendingTask(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New(clock)

	var first, second atomic.Int32
	s.Schedule(time.Second, func(uint64) { first.Add(1) })
	s.Schedule(3*time.Second, func(uint64) { second.Add(1) })

	clock.Advance(3 * time.Second)
	assert.Eventually(t, func() bool { return second.Load() == 1 }, waitFor, 5*time.Millisecond)
	assert.Equal(t, int32(0), first.Load())
}

func TestCancel_InvalidatesGeneration(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New(clock)

	var calls atomic.Int32
	gen := s.Schedule(time.Second, func(uint64) { calls.Add(1) })
	s.Cancel()

	assert.False(t, s.Current(gen))
	assert.False(t, s.Pending())

	clock.Advance(2 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestStaleCallbackSeesOldGeneration(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New(clock)

	release := make(chan struct{})
	result := make(chan bool, 1)
	s.Schedule(time.Second, func(g uint64) {
		<-release
		result <- s.Current(g)
	})

	go clock.Advance(time.Second)
	require.Eventually(t, func() bool { return !s.Pending() }, waitFor, 5*time.Millisecond)

	// A phase change lands while the callback is still waiting for the session lock.
	s.Schedule(time.Minute, func(uint64) {})
	close(release)

	select {
	case current := <-result:
		assert.False(t, current)
	case <-time.After(waitFor):
		t.Fatal("callback never ran")
	}
}

func TestRemainingAndElapsed(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New(clock)

	assert.Zero(t, s.Remaining())
	assert.Zero(t, s.Elapsed())

	s.Schedule(20*time.Second, func(uint64) {})
	clock.Advance(5 * time.Second)

	assert.Equal(t, 15*time.Second, s.Remaining())
	assert.Equal(t, 5*time.Second, s.Elapsed())
	assert.InDelta(t, 0.25, s.ElapsedFraction(), 1e-9)
}
