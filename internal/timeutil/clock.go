// Package timeutil provides a clock abstraction so calibration pacing can
// be driven by tests.
package timeutil

import (
	"sync"
	"time"
)

// Clock provides the time operations used by the calibration loop.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Since returns the duration since t.
	Since(t time.Time) time.Duration

	// Sleep pauses for the specified duration.
	Sleep(d time.Duration)
}

// RealClock implements Clock using the standard time package and keeps
// the instant it was created so uptime can be reported.
type RealClock struct {
	start time.Time
}

// NewRealClock returns a clock whose uptime starts now.
func NewRealClock() *RealClock {
	return &RealClock{start: time.Now()}
}

func (c *RealClock) Now() time.Time { return time.Now() }

func (c *RealClock) Since(t time.Time) time.Duration { return time.Since(t) }

func (c *RealClock) Sleep(d time.Duration) { time.Sleep(d) }

// Millis returns the milliseconds elapsed since the clock was created.
func (c *RealClock) Millis() int64 {
	return time.Since(c.start).Milliseconds()
}

// MockClock is a manually controlled clock for testing. Sleep returns
// immediately and advances the clock by the requested duration.
type MockClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps int
	slept  time.Duration
}

// NewMockClock creates a mock clock set to t.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *MockClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

func (c *MockClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps++
	c.slept += d
	c.now = c.now.Add(d)
}

// Advance moves the clock forward by d without counting a sleep.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Sleeps returns how many times Sleep was called.
func (c *MockClock) Sleeps() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sleeps
}

// Slept returns the total duration passed to Sleep.
func (c *MockClock) Slept() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slept
}
