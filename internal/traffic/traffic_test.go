package traffic

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestTracker() (*Tracker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return NewTrackerWithClock(5*time.Minute, clock.Now), clock
}

func TestTracker_Empty(t *testing.T) {
	tr, _ := newTestTracker()
	s := tr.Stats(time.Minute)
	if s.Total() != 0 || s.ErrorPercent() != 0 || s.DeniedPercent() != 0 {
		t.Errorf("Stats() = %+v, want zero", s)
	}
}

func TestTracker_Counts(t *testing.T) {
	tr, _ := newTestTracker()
	tr.RecordSuccess()
	tr.RecordSuccess()
	tr.RecordError()
	tr.RecordDenied()

	s := tr.Stats(time.Minute)
	if s.Successes != 2 || s.Errors != 1 || s.Denied != 1 || s.Total() != 4 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestStats_Percentages(t *testing.T) {
	tests := []struct {
		name       string
		stats      Stats
		wantErr    float64
		wantDenied float64
	}{
		{"all ok", Stats{Successes: 10}, 0, 0},
		{"half errors", Stats{Successes: 5, Errors: 5}, 50, 0},
		{"denials excluded from error share", Stats{Successes: 1, Errors: 1, Denied: 8}, 50, 80},
		{"only denials", Stats{Denied: 3}, 0, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.stats.ErrorPercent(); got != tt.wantErr {
				t.Errorf("ErrorPercent() = %v, want %v", got, tt.wantErr)
			}
			if got := tt.stats.DeniedPercent(); got != tt.wantDenied {
				t.Errorf("DeniedPercent() = %v, want %v", got, tt.wantDenied)
			}
		})
	}
}

func TestTracker_WindowExcludesOld(t *testing.T) {
	tr, clock := newTestTracker()
	tr.RecordError()
	clock.Advance(90 * time.Second)
	tr.RecordSuccess()

	if s := tr.Stats(time.Minute); s.Errors != 0 || s.Successes != 1 {
		t.Errorf("Stats(1m) = %+v, want only the recent success", s)
	}
	if s := tr.Stats(2 * time.Minute); s.Errors != 1 {
		t.Errorf("Stats(2m).Errors = %d, want 1", s.Errors)
	}
}

func TestTracker_PrunesBeyondRetention(t *testing.T) {
	tr, clock := newTestTracker()
	tr.RecordDenied()
	clock.Advance(6 * time.Minute)
	tr.RecordSuccess()

	if s := tr.Stats(time.Hour); s.Denied != 0 || s.Successes != 1 {
		t.Errorf("Stats() = %+v, want denial pruned", s)
	}
}

func TestTracker_Reset(t *testing.T) {
	tr, _ := newTestTracker()
	tr.RecordSuccess()
	tr.RecordError()
	tr.Reset()
	if s := tr.Stats(time.Minute); s.Total() != 0 {
		t.Errorf("Stats() after Reset = %+v, want zero", s)
	}
}

func TestTracker_Concurrent(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.RecordSuccess()
			tr.RecordError()
			_ = tr.Stats(time.Minute)
		}()
	}
	wg.Wait()
	if s := tr.Stats(time.Minute); s.Successes != 50 || s.Errors != 50 {
		t.Errorf("Stats() = %+v, want 50/50", s)
	}
}
