package accounts

import (
	"sync"
	"time"
)

// Default attempt limits for password and voice sign-in.
const (
	DefaultAttemptLimit  = 5
	DefaultAttemptWindow = 15 * time.Minute
)

// AttemptLimiter counts failed sign-in attempts per key in a sliding window.
type AttemptLimiter struct {
	limit  int
	window time.Duration

	mu       sync.Mutex
	failures map[string][]time.Time
}

// NewAttemptLimiter creates a limiter allowing limit failures per window.
// Non-positive values take the defaults.
func NewAttemptLimiter(limit int, window time.Duration) *AttemptLimiter {
	if limit <= 0 {
		limit = DefaultAttemptLimit
	}
	if window <= 0 {
		window = DefaultAttemptWindow
	}
	return &AttemptLimiter{
		limit:    limit,
		window:   window,
		failures: make(map[string][]time.Time),
	}
}

// Blocked reports whether key has used up its failures at now.
func (l *AttemptLimiter) Blocked(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pruneLocked(key, now)) >= l.limit
}

// Fail records a failed attempt.
func (l *AttemptLimiter) Fail(key string, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[key] = append(l.pruneLocked(key, now), now)
}

// Reset forgets the failures of key, typically after a success.
func (l *AttemptLimiter) Reset(key string) {
	l.mu.Lock()
	delete(l.failures, key)
	l.mu.Unlock()
}

func (l *AttemptLimiter) pruneLocked(key string, now time.Time) []time.Time {
	attempts := l.failures[key]
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(attempts) && !attempts[i].After(cutoff) {
		i++
	}
	attempts = attempts[i:]
	if len(attempts) == 0 {
		delete(l.failures, key)
		return nil
	}
	l.failures[key] = attempts
	return attempts
}
