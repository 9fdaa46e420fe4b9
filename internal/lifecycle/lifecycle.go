package lifecycle

import (
	"sync/atomic"
	"time"
)

// State is the process lifecycle as reported by /health. Safe for concurrent use.
type State struct {
	started      time.Time
	now          func() time.Time
	shuttingDown atomic.Bool
}

func New() *State {
	return NewWithClock(time.Now)
}

// NewWithClock records the start time from now and uses it for Uptime.
func NewWithClock(now func() time.Time) *State {
	return &State{started: now(), now: now}
}

// SetShuttingDown sets the drain flag. Call when SIGTERM/SIGINT is received;
// /health answers 503 shutting-down while it is set.
func (s *State) SetShuttingDown(v bool) {
	s.shuttingDown.Store(v)
}

func (s *State) IsShuttingDown() bool {
	return s.shuttingDown.Load()
}

func (s *State) Uptime() time.Duration {
	return s.now().Sub(s.started)
}
