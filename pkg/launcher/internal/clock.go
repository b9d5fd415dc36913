// Package internal holds the time source behind launcher waits.
package internal

import (
	"sync"
	"time"
)

// Clock tells a wait how much of its timeout is left.
type Clock interface {
	Now() time.Time
}

// SystemClock is the real clock. Readings carry the monotonic component,
// so a wall-clock step during a run does not cut a wait short.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Expired reports whether c has reached deadline.
func Expired(c Clock, deadline time.Time) bool {
	return !c.Now().Before(deadline)
}

// FakeClock only moves when told to. Tests advance it from inside a fake
// page read to simulate a page that takes seconds per poll.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock returns a FakeClock at a fixed instant.
func NewFakeClock() *FakeClock {
	return &FakeClock{now: time.Unix(1000000000, 0)}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d. Negative durations panic.
func (c *FakeClock) Advance(d time.Duration) {
	if d < 0 {
		panic("FakeClock.Advance: negative duration")
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
