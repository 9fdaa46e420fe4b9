package ratelimit

import (
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestLimiter_Boundary(t *testing.T) {
	const n = 5
	l := NewWithClock(n, time.Minute, newFakeClock().Now)

	for i := 1; i <= n; i++ {
		d := l.Check("client")
		if !d.Allowed {
			t.Fatalf("request %d denied, want allowed", i)
		}
		if d.Remaining != n-i {
			t.Errorf("request %d remaining = %d, want %d", i, d.Remaining, n-i)
		}
		if d.Limit != n {
			t.Errorf("Limit = %d, want %d", d.Limit, n)
		}
	}
	d := l.Check("client")
	if d.Allowed || d.Remaining != 0 {
		t.Errorf("request %d = %+v, want denied with remaining 0", n+1, d)
	}
}

func TestLimiter_DefaultSixtyPerMinute(t *testing.T) {
	clock := newFakeClock()
	l := NewWithClock(0, 0, clock.Now)

	for i := 1; i <= 60; i++ {
		if d := l.Check("203.0.113.9"); !d.Allowed {
			t.Fatalf("request %d denied", i)
		}
		clock.Advance(500 * time.Millisecond)
	}
	d := l.Check("203.0.113.9")
	if d.Allowed || d.Remaining != 0 {
		t.Errorf("request 61 = %+v, want denied with remaining 0", d)
	}
}

func TestLimiter_WindowReset(t *testing.T) {
	clock := newFakeClock()
	l := NewWithClock(2, time.Minute, clock.Now)

	first := l.Check("c")
	l.Check("c")
	if d := l.Check("c"); d.Allowed {
		t.Fatal("third request allowed, want denied")
	}

	clock.Advance(time.Minute - time.Millisecond)
	if d := l.Check("c"); d.Allowed {
		t.Fatal("request just before reset allowed, want denied")
	}

	clock.Advance(time.Millisecond)
	d := l.Check("c")
	if !d.Allowed || d.Remaining != 1 {
		t.Errorf("at reset = %+v, want allowed with remaining 1", d)
	}
	if !d.ResetAt.Equal(first.ResetAt.Add(time.Minute)) {
		t.Errorf("ResetAt = %v, want %v", d.ResetAt, first.ResetAt.Add(time.Minute))
	}
}

func TestLimiter_SingleRequestWindowBoundary(t *testing.T) {
	clock := newFakeClock()
	l := NewWithClock(1, time.Minute, clock.Now)
	start := clock.Now()

	l.Check("c")
	clock.Advance(time.Minute)
	d := l.Check("c")
	want := Decision{Allowed: true, Remaining: 0, Limit: 1, ResetAt: start.Add(2 * time.Minute)}
	if d != want {
		t.Errorf("Check() at reset = %+v, want %+v", d, want)
	}
}

func TestLimiter_ResetAtStableWithinWindow(t *testing.T) {
	clock := newFakeClock()
	l := NewWithClock(10, time.Minute, clock.Now)

	first := l.Check("c")
	clock.Advance(10 * time.Second)
	second := l.Check("c")
	if !first.ResetAt.Equal(second.ResetAt) {
		t.Errorf("ResetAt changed within window: %v -> %v", first.ResetAt, second.ResetAt)
	}
}

func TestLimiter_ClientsIndependent(t *testing.T) {
	l := NewWithClock(1, time.Minute, newFakeClock().Now)

	if !l.Check("a").Allowed {
		t.Fatal("a denied")
	}
	if !l.Check("b").Allowed {
		t.Error("b denied, want independent quota")
	}
	if l.Check("a").Allowed {
		t.Error("a allowed twice with limit 1")
	}
}

func TestLimiter_ResetAndClear(t *testing.T) {
	l := NewWithClock(1, time.Minute, newFakeClock().Now)
	l.Check("a")
	l.Check("b")

	l.Reset("a")
	if !l.Check("a").Allowed {
		t.Error("a denied after Reset")
	}
	if l.Check("b").Allowed {
		t.Error("b allowed, Reset should only affect a")
	}

	l.Clear()
	if l.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", l.Len())
	}
}

func TestLimiter_Cleanup(t *testing.T) {
	clock := newFakeClock()
	l := NewWithClock(5, time.Minute, clock.Now)
	l.Check("old")
	clock.Advance(30 * time.Second)
	l.Check("new")

	clock.Advance(31 * time.Second)
	if removed := l.Cleanup(); removed != 1 {
		t.Errorf("Cleanup() = %d, want 1", removed)
	}
	if l.Len() != 1 {
		t.Errorf("Len() = %d, want 1", l.Len())
	}
}

func TestLimiter_CleanupAtReset(t *testing.T) {
	clock := newFakeClock()
	l := NewWithClock(5, time.Minute, clock.Now)
	l.Check("c")

	clock.Advance(time.Minute - time.Millisecond)
	if removed := l.Cleanup(); removed != 0 {
		t.Errorf("Cleanup() before reset = %d, want 0", removed)
	}
	clock.Advance(time.Millisecond)
	if removed := l.Cleanup(); removed != 1 {
		t.Errorf("Cleanup() at reset = %d, want 1", removed)
	}
}

func TestLimiter_ConcurrentAdmitsExactlyLimit(t *testing.T) {
	const limit = 50
	l := New(limit, time.Minute)

	var allowed int64
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Check("same").Allowed {
				atomic.AddInt64(&allowed, 1)
			}
		}()
	}
	wg.Wait()
	if allowed != limit {
		t.Errorf("allowed = %d, want %d", allowed, limit)
	}
}

func TestDecision_RetryAfter(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		reset time.Time
		want  int
	}{
		{"whole seconds", now.Add(30 * time.Second), 30},
		{"rounds up", now.Add(1500 * time.Millisecond), 2},
		{"past reset", now.Add(-time.Second), 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := (Decision{ResetAt: tc.reset}).RetryAfter(now); got != tc.want {
				t.Errorf("RetryAfter() = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestClientIdentifier(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"forwarded first entry", map[string]string{"X-Forwarded-For": "203.0.113.1, 10.0.0.1"}, "203.0.113.1"},
		{"forwarded wins over real ip", map[string]string{"X-Forwarded-For": "203.0.113.1", "X-Real-IP": "198.51.100.2"}, "203.0.113.1"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.2"}, "198.51.100.2"},
		{"blank forwarded falls through", map[string]string{"X-Forwarded-For": " , 10.0.0.1", "X-Real-IP": "198.51.100.2"}, "198.51.100.2"},
		{"no headers", nil, UnknownClient},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/v1/weather?city=london", nil)
			for k, v := range tc.headers {
				r.Header.Set(k, v)
			}
			if got := ClientIdentifier(r); got != tc.want {
				t.Errorf("ClientIdentifier() = %q, want %q", got, tc.want)
			}
		})
	}
}
