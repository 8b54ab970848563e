package tui

import "time"

// Clock is the presentation clock of the terminal host. Media time advances
// with wall time while the clock runs and holds still while it is stopped.
type Clock struct {
	now     func() time.Time
	base    int64
	started time.Time
	running bool
}

// NewClock returns a stopped clock at 0. A nil now uses time.Now.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

// Start resumes the clock from its current media time.
func (c *Clock) Start() {
	if c.running {
		return
	}
	c.started = c.now()
	c.running = true
}

// Stop freezes the clock at its current media time.
func (c *Clock) Stop() {
	if !c.running {
		return
	}
	c.base = c.Now()
	c.running = false
}

// Set jumps to ms without changing whether the clock runs.
func (c *Clock) Set(ms int64) {
	c.base = ms
	if c.running {
		c.started = c.now()
	}
}

// Now returns the current media time in milliseconds.
func (c *Clock) Now() int64 {
	if !c.running {
		return c.base
	}
	return c.base + c.now().Sub(c.started).Milliseconds()
}

// Running reports whether the clock advances.
func (c *Clock) Running() bool { return c.running }
