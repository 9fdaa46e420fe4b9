package traffic

import (
	"sync"
	"time"
)

// DefaultRetention bounds how far back outcomes are kept.
const DefaultRetention = 5 * time.Minute

// Stats summarizes outcomes inside one window.
type Stats struct {
	Successes int
	Errors    int
	Denied    int
}

// Total counts every outcome, denials included.
func (s Stats) Total() int {
	return s.Successes + s.Errors + s.Denied
}

// ErrorPercent is errors over served requests (denials excluded), 0 when nothing was served.
func (s Stats) ErrorPercent() float64 {
	served := s.Successes + s.Errors
	if served == 0 {
		return 0
	}
	return float64(s.Errors) * 100 / float64(served)
}

// DeniedPercent is rate-limit denials over all outcomes.
func (s Stats) DeniedPercent() float64 {
	total := s.Total()
	if total == 0 {
		return 0
	}
	return float64(s.Denied) * 100 / float64(total)
}

// Tracker keeps sliding windows of request outcome timestamps. The health endpoint
// derives degraded (error share) and overloaded (denial share) states from it.
type Tracker struct {
	mu           sync.Mutex
	now          func() time.Time
	retention    time.Duration
	successTimes []time.Time
	errorTimes   []time.Time
	deniedTimes  []time.Time
}

func NewTracker() *Tracker {
	return NewTrackerWithClock(DefaultRetention, time.Now)
}

// NewTrackerWithClock is NewTracker with explicit retention and clock, for tests.
func NewTrackerWithClock(retention time.Duration, now func() time.Time) *Tracker {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Tracker{now: now, retention: retention}
}

// RecordSuccess records a request that was served (2xx, or a 4xx caused by the caller).
func (t *Tracker) RecordSuccess() {
	t.record(&t.successTimes)
}

// RecordError records a request that failed on our side or upstream (5xx, 503).
func (t *Tracker) RecordError() {
	t.record(&t.errorTimes)
}

// RecordDenied records a rate-limit denial (429).
func (t *Tracker) RecordDenied() {
	t.record(&t.deniedTimes)
}

func (t *Tracker) record(slice *[]time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	*slice = append(*slice, now)
	t.pruneLocked(now)
}

// Stats counts outcomes no older than window.
func (t *Tracker) Stats(window time.Duration) Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-window)
	return Stats{
		Successes: countSince(t.successTimes, cutoff),
		Errors:    countSince(t.errorTimes, cutoff),
		Denied:    countSince(t.deniedTimes, cutoff),
	}
}

// Reset clears all recorded outcomes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.successTimes = nil
	t.errorTimes = nil
	t.deniedTimes = nil
}

func countSince(times []time.Time, cutoff time.Time) int {
	n := 0
	for _, ts := range times {
		if !ts.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops timestamps older than the retention. Slices are append-ordered.
func (t *Tracker) pruneLocked(now time.Time) {
	cutoff := now.Add(-t.retention)
	prune := func(slice *[]time.Time) {
		times := *slice
		i := 0
		for ; i < len(times) && times[i].Before(cutoff); i++ {
		}
		if i > 0 {
			*slice = append(times[:0], times[i:]...)
		}
	}
	prune(&t.successTimes)
	prune(&t.errorTimes)
	prune(&t.deniedTimes)
}
