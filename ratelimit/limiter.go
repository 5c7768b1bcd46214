package ratelimit

import (
	"sync"
	"time"
)

type (
	// Limiter admits requests per client key using fixed windows. The first
	// request of a key opens a window; once the window ends the next request
	// opens a fresh one.
	Limiter struct {
		window time.Duration
		max    int
		now    func() time.Time

		mu      sync.Mutex
		windows map[string]*counter
	}

	counter struct {
		ends  time.Time
		count int
	}

	// Option configures Limiter.
	Option func(l *Limiter)
)

// WithClock replaces time.Now, used by tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// New creates a limiter allowing max requests per window for every key.
// A non-positive max disables limiting.
func New(window time.Duration, max int, opts ...Option) *Limiter {
	l := &Limiter{
		window:  window,
		max:     max,
		now:     time.Now,
		windows: make(map[string]*counter),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Admit counts a request for key. When the key has already used up its
// window, it returns false and the time left until the window ends.
func (l *Limiter) Admit(key string) (bool, time.Duration) {
	if l.max <= 0 || l.window <= 0 {
		return true, 0
	}

	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.windows[key]
	if !ok || !now.Before(c.ends) {
		c = &counter{ends: now.Add(l.window)}
		l.windows[key] = c
	}

	if c.count >= l.max {
		return false, c.ends.Sub(now)
	}

	c.count++

	return true, 0
}

// Sweep drops windows that have already ended and returns how many were
// removed.
func (l *Limiter) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	var removed int
	for key, c := range l.windows {
		if !now.Before(c.ends) {
			delete(l.windows, key)
			removed++
		}
	}

	return removed
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.windows)
}
