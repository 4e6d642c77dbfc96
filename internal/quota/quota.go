// Package quota enforces the daily submission limit shared by concurrent
// pipeline workers.
package quota

import "sync"

// Counter is the submissions-today counter. Acquire reserves one submission
// slot with an atomic check-then-increment so that concurrent workers can
// never overshoot the limit between a check and a submit.
type Counter struct {
	mu    sync.Mutex
	limit int
	used  int
}

// NewCounter returns a counter seeded with the submissions already made
// today, so restarts within the same day keep counting from the store.
func NewCounter(limit, used int) *Counter {
	if used < 0 {
		used = 0
	}
	return &Counter{limit: limit, used: used}
}

// Acquire reserves one slot. It returns false when the limit is reached.
func (c *Counter) Acquire() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.used >= c.limit {
		return false
	}
	c.used++
	return true
}

// Release returns a slot reserved by Acquire, for submissions that were
// authorized but never happened.
func (c *Counter) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.used > 0 {
		c.used--
	}
}

// Reached reports whether the limit is already exhausted.
func (c *Counter) Reached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used >= c.limit
}

// Used returns the number of reserved slots.
func (c *Counter) Used() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

// Limit returns the configured daily limit.
func (c *Counter) Limit() int {
	return c.limit
}
