package timing

import (
	"sync"
	"time"
)

// Timer measures the time elapsed since it was created or last reset.
type Timer struct {
	mu    sync.Mutex
	start time.Time
}

// NewTimer returns a Timer started now.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Total returns the time elapsed since the timer started.
func (t *Timer) Total() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Since(t.start)
}

// Reset restarts the timer and returns the time elapsed before the reset.
func (t *Timer) Reset() time.Duration {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	elapsed := now.Sub(t.start)
	t.start = now
	return elapsed
}

// Clock tracks frame style time: Update advances the clock and records the
// time elapsed since the previous Update.
type Clock struct {
	mu      sync.Mutex
	start   time.Time
	current time.Time
	elapsed time.Duration
}

// NewClock returns a Clock started now.
func NewClock() *Clock {
	now := time.Now()
	return &Clock{start: now, current: now}
}

// Update advances the clock to now and returns the time elapsed since the
// previous Update (or since the clock started).
func (c *Clock) Update() time.Duration {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.elapsed = now.Sub(c.current)
	c.current = now
	return c.elapsed
}

// Current returns the time recorded by the last Update.
func (c *Clock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Elapsed returns the delta computed by the last Update.
func (c *Clock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsed
}

// Total returns the time between the clock starting and the last Update.
func (c *Clock) Total() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.Sub(c.start)
}

// Reset restarts the clock at now and clears the last delta.
func (c *Clock) Reset() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.start = now
	c.current = now
	c.elapsed = 0
}
