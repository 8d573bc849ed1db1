package engine

import "sync"

// Counters hands out per-service request numbers, starting at 1.
type Counters struct {
	mu     sync.Mutex
	counts map[string]int64
}

// NewCounters creates an empty Counters.
func NewCounters() *Counters {
	return &Counters{counts: make(map[string]int64)}
}

// Next increments and returns the counter for key.
func (c *Counters) Next(key string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[key]++
	return c.counts[key]
}

// Get returns the current value for key without incrementing it.
func (c *Counters) Get(key string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[key]
}

// Reset clears every counter.
func (c *Counters) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.counts)
}
