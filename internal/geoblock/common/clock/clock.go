package clock

import (
	"sync"
	"time"
)

// Clock abstracts the current instant so expiry decisions can be driven from tests.
type Clock interface {
	Now() time.Time
}

// RealClock reports the wall clock in UTC.
type RealClock struct{}

func (c RealClock) Now() time.Time {
	return time.Now().UTC()
}

// MockClock is a manually driven Clock. It is safe for concurrent use, since
// the sweeper and request path read it from different goroutines.
type MockClock struct {
	mu          sync.RWMutex
	currentTime time.Time
}

// NewMockClock returns a MockClock frozen at t.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{currentTime: t}
}

func (c *MockClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentTime
}

// Advance moves the clock by d. Negative durations move it backwards.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.currentTime = c.currentTime.Add(d)
	c.mu.Unlock()
}

// Set pins the clock to t.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	c.currentTime = t
	c.mu.Unlock()
}
