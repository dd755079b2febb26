// Package ratelimit implements the request limiting stack: fixed-window
// counters behind an injectable store, named limiter profiles, progressive
// escalation for repeat offenders, country-based limits, and a standalone
// DDoS guard with temporary IP blocking.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// CounterStore tracks per-key request counts within fixed windows.
// Implementations must be safe for concurrent use.
type CounterStore interface {
	// Incr increments the counter for key, starting a fresh window when the
	// previous one has elapsed, and returns the post-increment count.
	Incr(ctx context.Context, key string, window time.Duration) (int, error)
	// Decr undoes one increment. Used by limiters that do not count
	// successful requests against the limit.
	Decr(ctx context.Context, key string) error
}

type window struct {
	count     int
	expiresAt time.Time
}

// MemoryStore is the default process-local CounterStore. State is lost on
// restart and is not shared between instances; a horizontally scaled
// deployment should use RedisStore instead.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window

	// now is the clock; tests override it.
	now func() time.Time
}

// NewMemoryStore creates an empty in-memory counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// Incr implements CounterStore.
func (s *MemoryStore) Incr(_ context.Context, key string, windowSize time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[key]
	if !ok || now.After(w.expiresAt) {
		w = &window{expiresAt: now.Add(windowSize)}
		s.windows[key] = w
	}

	w.count++
	return w.count, nil
}

// Decr implements CounterStore.
func (s *MemoryStore) Decr(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w, ok := s.windows[key]; ok && w.count > 0 {
		w.count--
	}
	return nil
}

// StartJanitor launches a goroutine that drops expired windows until done is
// closed. Without it, keys for one-off clients would accumulate forever.
func (s *MemoryStore) StartJanitor(done <-chan struct{}, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-done:
				return
			}
		}
	}()
}

func (s *MemoryStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, w := range s.windows {
		if now.After(w.expiresAt) {
			delete(s.windows, key)
		}
	}
}
