package ratelimit

import (
	"context"
	"sync"
	"time"
)

// AttemptStore is a counter store with per-key expiry. Implementations set the
// expiry when a key is created and keep it on later increments.
type AttemptStore interface {
	Count(ctx context.Context, key string) (int, error)
	Increment(ctx context.Context, key string, ttl time.Duration) (int, error)
	Reset(ctx context.Context, key string) error
}

type counter struct {
	value     int
	expiresAt time.Time
}

// MemoryAttemptStore keeps counters in process. Expired entries are dropped
// lazily when touched.
type MemoryAttemptStore struct {
	mu       sync.Mutex
	counters map[string]counter
	now      func() time.Time
}

func NewMemoryAttemptStore() *MemoryAttemptStore {
	return &MemoryAttemptStore{
		counters: make(map[string]counter),
		now:      time.Now,
	}
}

func (s *MemoryAttemptStore) Count(_ context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.live(key)
	if !ok {
		return 0, nil
	}
	return c.value, nil
}

func (s *MemoryAttemptStore) Increment(_ context.Context, key string, ttl time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.live(key)
	if !ok {
		c = counter{expiresAt: s.now().Add(ttl)}
	}
	c.value++
	s.counters[key] = c

	return c.value, nil
}

func (s *MemoryAttemptStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.counters, key)
	return nil
}

// live must be called with mu held.
func (s *MemoryAttemptStore) live(key string) (counter, bool) {
	c, ok := s.counters[key]
	if !ok {
		return counter{}, false
	}
	if !s.now().Before(c.expiresAt) {
		delete(s.counters, key)
		return counter{}, false
	}
	return c, true
}
