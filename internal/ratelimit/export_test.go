package ratelimit

import "time"

// Test hooks for deterministic clocks.

// SetClock overrides the store's clock.
func (s *MemoryStore) SetClock(now func() time.Time) { s.now = now }

// SetClock overrides the tracker's clock.
func (t *ViolationTracker) SetClock(now func() time.Time) { t.now = now }

// SetClock overrides the guard's clock.
func (g *Guard) SetClock(now func() time.Time) { g.now = now }
