package generation

import (
	"sync"
	"time"
)

// Default per-model request budget.
const (
	DefaultRateLimit       = 10
	DefaultRateLimitWindow = time.Minute
)

type window struct {
	count   int
	resetAt time.Time
}

// RateLimiter admits at most limit requests per model within a window that
// opens at the model's first request and resets once it has elapsed.
// It is safe for concurrent use by independent batches.
type RateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	windows map[string]*window
}

// NewRateLimiter creates a limiter. Non-positive arguments take the defaults.
func NewRateLimiter(limit int, w time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	if w <= 0 {
		w = DefaultRateLimitWindow
	}
	return &RateLimiter{
		limit:   limit,
		window:  w,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

// Allow counts one request against modelID, or returns a *RateLimitError
// when the window is already full. Rejected requests are not counted.
func (l *RateLimiter) Allow(modelID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[modelID]
	if !ok || !now.Before(w.resetAt) {
		l.windows[modelID] = &window{count: 1, resetAt: now.Add(l.window)}
		return nil
	}
	if w.count >= l.limit {
		return &RateLimitError{Model: modelID, RetryAfter: w.resetAt.Sub(now)}
	}
	w.count++
	return nil
}
