package client

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/kjstillabower/weather-intelligence-service/internal/observability"
)

// BreakerSettings configures the upstream circuit breaker. With Enabled false the
// breaker never trips but still reports state.
type BreakerSettings struct {
	Enabled bool
	// FailureThreshold is the number of consecutive failures that opens the circuit.
	FailureThreshold uint32
	// SuccessThreshold is the number of probe requests allowed while half-open.
	SuccessThreshold uint32
	// Timeout is how long the circuit stays open before probing.
	Timeout time.Duration
}

func newBreaker(name string, s BreakerSettings) *gobreaker.CircuitBreaker {
	if s.FailureThreshold == 0 {
		s.FailureThreshold = 5
	}
	if s.SuccessThreshold == 0 {
		s.SuccessThreshold = 2
	}
	if s.Timeout <= 0 {
		s.Timeout = 30 * time.Second
	}
	observability.CircuitBreakerState.WithLabelValues(name).Set(stateValue(gobreaker.StateClosed))

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: s.SuccessThreshold,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return s.Enabled && counts.ConsecutiveFailures >= s.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.CircuitBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
		IsSuccessful: isBreakerSuccess,
	})
}

// isBreakerSuccess treats caller mistakes and caller cancellation as healthy upstream
// responses so they never trip the circuit.
func isBreakerSuccess(err error) bool {
	return err == nil ||
		errors.Is(err, ErrLocationNotFound) ||
		errors.Is(err, ErrInvalidAPIKey) ||
		errors.Is(err, context.Canceled)
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
