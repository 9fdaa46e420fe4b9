package http

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-intelligence-service/internal/observability"
)

const (
	StatusHealthy      = "healthy"
	StatusDegraded     = "degraded"
	StatusOverloaded   = "overloaded"
	StatusShuttingDown = "shutting-down"
)

// HealthConfig holds thresholds and probes for the health handler.
type HealthConfig struct {
	// Window is how far back request outcomes are considered.
	Window time.Duration
	// DegradedErrorPct is the share of served requests that failed (5xx) at which
	// the service reports degraded. 0 disables the check.
	DegradedErrorPct int
	// OverloadDeniedPct is the share of requests denied by rate limiting at which
	// the service reports overloaded. 0 disables the check.
	OverloadDeniedPct int
	// MinSamples is the number of outcomes required before the percentages apply.
	MinSamples int
	// BreakerState reports the upstream circuit ("closed", "half-open", "open").
	BreakerState func() string
	// CachePing, when set, checks cache reachability. Used when the backend is memcached.
	CachePing func() error
	Version   string
}

func (c HealthConfig) withDefaults() HealthConfig {
	if c.Window <= 0 {
		c.Window = 60 * time.Second
	}
	if c.MinSamples <= 0 {
		c.MinSamples = 10
	}
	if c.Version == "" {
		c.Version = "dev"
	}
	return c
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result, checks := h.computeHealthStatus()

	h.healthStatusMu.Lock()
	prev := h.healthStatusPrev
	if prev != "" && prev != result.status {
		h.logger.Info("health status transition",
			zap.String("previous_status", prev),
			zap.String("current_status", result.status),
			zap.String("reason", result.reason))
	}
	h.healthStatusPrev = result.status
	h.healthStatusMu.Unlock()

	stats := h.tracker.Stats(h.health.Window)
	writeJSON(w, result.statusCode, map[string]interface{}{
		"status":  result.status,
		"service": observability.ServiceName,
		"version": h.health.Version,
		"checks":  checks,
		"traffic": map[string]interface{}{
			"window":     h.health.Window.String(),
			"requests":   stats.Total(),
			"errorPct":   stats.ErrorPercent(),
			"deniedPct":  stats.DeniedPercent(),
			"successful": stats.Successes,
		},
		"uptimeSeconds": int64(h.state.Uptime().Seconds()),
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	})
}

// computeHealthStatus evaluates conditions in priority order:
// shutting-down > upstream circuit open > overloaded > error rate > healthy.
func (h *Handler) computeHealthStatus() (healthResult, map[string]string) {
	checks := map[string]string{"weatherApi": "healthy"}
	breaker := "closed"
	if h.health.BreakerState != nil {
		breaker = h.health.BreakerState()
	}
	switch breaker {
	case "open":
		checks["weatherApi"] = "unhealthy"
	case "half-open":
		checks["weatherApi"] = "recovering"
	}
	if h.health.CachePing != nil {
		if err := h.health.CachePing(); err != nil {
			checks["cache"] = "unhealthy"
		} else {
			checks["cache"] = "healthy"
		}
	}

	if h.state.IsShuttingDown() {
		return healthResult{StatusShuttingDown, http.StatusServiceUnavailable, "signal"}, checks
	}
	if breaker == "open" {
		return healthResult{StatusDegraded, http.StatusServiceUnavailable, "circuit_open"}, checks
	}

	stats := h.tracker.Stats(h.health.Window)
	if h.health.OverloadDeniedPct > 0 && stats.Total() >= h.health.MinSamples &&
		stats.DeniedPercent() >= float64(h.health.OverloadDeniedPct) {
		return healthResult{StatusOverloaded, http.StatusServiceUnavailable, "denial_threshold"}, checks
	}
	if h.health.DegradedErrorPct > 0 && stats.Successes+stats.Errors >= h.health.MinSamples &&
		stats.ErrorPercent() >= float64(h.health.DegradedErrorPct) {
		return healthResult{StatusDegraded, http.StatusServiceUnavailable, "error_rate_breach"}, checks
	}
	if checks["cache"] == "unhealthy" {
		return healthResult{StatusDegraded, http.StatusOK, "cache_unreachable"}, checks
	}
	return healthResult{StatusHealthy, http.StatusOK, ""}, checks
}
