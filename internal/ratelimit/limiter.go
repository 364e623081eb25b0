// Package ratelimit counts failed student logins per client address.
//
// The window is fixed: it opens on the first failure and is not extended by
// later ones. When the AttemptStore fails, every method returns the error and
// callers reject the request, so an unavailable store blocks all logins.
package ratelimit

import (
	"context"
	"time"
)

const (
	DefaultMaxAttempts = 5
	DefaultWindow      = 5 * time.Minute
)

type Limiter struct {
	store       AttemptStore
	maxAttempts int
	window      time.Duration
}

func NewLimiter(store AttemptStore, maxAttempts int, window time.Duration) *Limiter {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		store:       store,
		maxAttempts: maxAttempts,
		window:      window,
	}
}

// CheckAllowed reports whether addr may attempt a login.
func (l *Limiter) CheckAllowed(ctx context.Context, addr string) (bool, error) {
	n, err := l.store.Count(ctx, addr)
	if err != nil {
		return false, err
	}
	return n < l.maxAttempts, nil
}

// RecordFailure increments the counter for addr and returns the new count.
func (l *Limiter) RecordFailure(ctx context.Context, addr string) (int, error) {
	return l.store.Increment(ctx, addr, l.window)
}

// RecordSuccess clears the counter for addr.
func (l *Limiter) RecordSuccess(ctx context.Context, addr string) error {
	return l.store.Reset(ctx, addr)
}

func (l *Limiter) Window() time.Duration {
	return l.window
}
