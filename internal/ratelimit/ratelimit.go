// Package ratelimit implements a per-client fixed-window request limiter.
package ratelimit

import (
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	DefaultMaxRequests = 60
	DefaultWindow      = 60 * time.Second

	// UnknownClient is the shared identity for requests without forwarding headers.
	// All such requests draw from one quota.
	UnknownClient = "unknown"
)

// Decision is the outcome of one Check.
type Decision struct {
	Allowed   bool
	Remaining int
	Limit     int
	ResetAt   time.Time
}

// RetryAfter returns the whole seconds until the window resets, at least 1.
func (d Decision) RetryAfter(now time.Time) int {
	secs := int(d.ResetAt.Sub(now).Seconds() + 0.999)
	if secs < 1 {
		secs = 1
	}
	return secs
}

type window struct {
	count   int
	resetAt time.Time
}

// Limiter admits at most maxRequests per client within each fixed window. A client's
// window starts on its first request and is replaced by a fresh one once resetAt passes.
// Safe for concurrent use; check-and-increment is atomic.
type Limiter struct {
	mu          sync.Mutex
	windows     map[string]*window
	maxRequests int
	window      time.Duration
	now         func() time.Time
}

// New creates a Limiter. Non-positive arguments fall back to 60 requests per 60 seconds.
func New(maxRequests int, win time.Duration) *Limiter {
	return NewWithClock(maxRequests, win, time.Now)
}

// NewWithClock is New with an injectable clock.
func NewWithClock(maxRequests int, win time.Duration, now func() time.Time) *Limiter {
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}
	if win <= 0 {
		win = DefaultWindow
	}
	if now == nil {
		now = time.Now
	}
	return &Limiter{
		windows:     make(map[string]*window),
		maxRequests: maxRequests,
		window:      win,
		now:         now,
	}
}

// Check counts one request for clientID and reports whether it is admitted.
// A denied request does not consume quota.
func (l *Limiter) Check(clientID string) Decision {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[clientID]
	if !ok || !now.Before(w.resetAt) {
		w = &window{count: 1, resetAt: now.Add(l.window)}
		l.windows[clientID] = w
		return Decision{Allowed: true, Remaining: l.maxRequests - 1, Limit: l.maxRequests, ResetAt: w.resetAt}
	}
	if w.count < l.maxRequests {
		w.count++
		return Decision{Allowed: true, Remaining: l.maxRequests - w.count, Limit: l.maxRequests, ResetAt: w.resetAt}
	}
	return Decision{Allowed: false, Remaining: 0, Limit: l.maxRequests, ResetAt: w.resetAt}
}

// Reset forgets clientID's window.
func (l *Limiter) Reset(clientID string) {
	l.mu.Lock()
	delete(l.windows, clientID)
	l.mu.Unlock()
}

// Clear forgets every window.
func (l *Limiter) Clear() {
	l.mu.Lock()
	l.windows = make(map[string]*window)
	l.mu.Unlock()
}

// Cleanup removes windows whose reset time has been reached. Returns the number removed.
func (l *Limiter) Cleanup() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for id, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Limit returns the configured maximum requests per window.
func (l *Limiter) Limit() int {
	return l.maxRequests
}

// Now returns the limiter's clock reading; handlers use it to compute Retry-After.
func (l *Limiter) Now() time.Time {
	return l.now()
}

// ClientIdentifier resolves the client identity: first X-Forwarded-For entry, then
// X-Real-IP, then UnknownClient.
func ClientIdentifier(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if id := strings.TrimSpace(first); id != "" {
			return id
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return UnknownClient
}
