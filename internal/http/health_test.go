package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kjstillabower/weather-intelligence-service/internal/lifecycle"
	"github.com/kjstillabower/weather-intelligence-service/internal/traffic"
)

type healthBody struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
	Traffic struct {
		Window     string  `json:"window"`
		Requests   int     `json:"requests"`
		ErrorPct   float64 `json:"errorPct"`
		DeniedPct  float64 `json:"deniedPct"`
		Successful int     `json:"successful"`
	} `json:"traffic"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
	Timestamp     string `json:"timestamp"`
}

func newHealthHandler(tracker *traffic.Tracker, state *lifecycle.State, cfg HealthConfig, logger *zap.Logger) *Handler {
	return NewHandler(nil, tracker, state, cfg, logger)
}

func getHealth(t *testing.T, h *Handler) (int, healthBody) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.GetHealth(w, req)

	var body healthBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	return w.Code, body
}

func record(tr *traffic.Tracker, ok, errs, denied int) {
	for i := 0; i < ok; i++ {
		tr.RecordSuccess()
	}
	for i := 0; i < errs; i++ {
		tr.RecordError()
	}
	for i := 0; i < denied; i++ {
		tr.RecordDenied()
	}
}

func TestGetHealth_Healthy(t *testing.T) {
	h := newHealthHandler(nil, nil, HealthConfig{Version: "1.2.3"}, zap.NewNop())
	code, body := getHealth(t, h)

	if code != http.StatusOK {
		t.Errorf("status code = %d, want 200", code)
	}
	if body.Status != StatusHealthy {
		t.Errorf("status = %q, want %q", body.Status, StatusHealthy)
	}
	if body.Version != "1.2.3" || body.Service == "" {
		t.Errorf("version/service = %q/%q", body.Version, body.Service)
	}
	if body.Checks["weatherApi"] != "healthy" {
		t.Errorf("checks.weatherApi = %q, want healthy", body.Checks["weatherApi"])
	}
	if _, ok := body.Checks["cache"]; ok {
		t.Error("cache check must be absent without a probe")
	}
	if body.Traffic.Window != "1m0s" {
		t.Errorf("traffic.window = %q, want 1m0s", body.Traffic.Window)
	}
	if _, err := time.Parse(time.RFC3339, body.Timestamp); err != nil {
		t.Errorf("timestamp %q not RFC3339: %v", body.Timestamp, err)
	}
}

func TestGetHealth_Statuses(t *testing.T) {
	tests := []struct {
		name       string
		ok         int
		errs       int
		denied     int
		breaker    string
		shutdown   bool
		cacheErr   error
		wantStatus string
		wantCode   int
		wantAPI    string
	}{
		{name: "shutting down wins", ok: 20, breaker: "open", shutdown: true,
			wantStatus: StatusShuttingDown, wantCode: http.StatusServiceUnavailable, wantAPI: "unhealthy"},
		{name: "circuit open", ok: 20, breaker: "open",
			wantStatus: StatusDegraded, wantCode: http.StatusServiceUnavailable, wantAPI: "unhealthy"},
		{name: "circuit half-open stays healthy", ok: 20, breaker: "half-open",
			wantStatus: StatusHealthy, wantCode: http.StatusOK, wantAPI: "recovering"},
		{name: "overloaded", ok: 10, denied: 10,
			wantStatus: StatusOverloaded, wantCode: http.StatusServiceUnavailable, wantAPI: "healthy"},
		{name: "error rate", ok: 10, errs: 10,
			wantStatus: StatusDegraded, wantCode: http.StatusServiceUnavailable, wantAPI: "healthy"},
		{name: "below min samples", errs: 5, denied: 4,
			wantStatus: StatusHealthy, wantCode: http.StatusOK, wantAPI: "healthy"},
		{name: "denials do not count as errors", ok: 10, errs: 1, denied: 5,
			wantStatus: StatusHealthy, wantCode: http.StatusOK, wantAPI: "healthy"},
		{name: "cache unreachable", ok: 20, cacheErr: errors.New("dial tcp: refused"),
			wantStatus: StatusDegraded, wantCode: http.StatusOK, wantAPI: "healthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := traffic.NewTracker()
			record(tr, tt.ok, tt.errs, tt.denied)
			state := lifecycle.New()
			state.SetShuttingDown(tt.shutdown)
			cfg := HealthConfig{
				DegradedErrorPct:  25,
				OverloadDeniedPct: 40,
				BreakerState:      func() string { return tt.breaker },
			}
			if tt.cacheErr != nil {
				cfg.CachePing = func() error { return tt.cacheErr }
			}
			h := newHealthHandler(tr, state, cfg, zap.NewNop())

			code, body := getHealth(t, h)
			if code != tt.wantCode {
				t.Errorf("status code = %d, want %d", code, tt.wantCode)
			}
			if body.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", body.Status, tt.wantStatus)
			}
			if body.Checks["weatherApi"] != tt.wantAPI {
				t.Errorf("checks.weatherApi = %q, want %q", body.Checks["weatherApi"], tt.wantAPI)
			}
			if tt.cacheErr != nil && body.Checks["cache"] != "unhealthy" {
				t.Errorf("checks.cache = %q, want unhealthy", body.Checks["cache"])
			}
		})
	}
}

func TestGetHealth_TrafficSummary(t *testing.T) {
	tr := traffic.NewTracker()
	record(tr, 6, 2, 2)
	h := newHealthHandler(tr, nil, HealthConfig{}, zap.NewNop())

	_, body := getHealth(t, h)
	if body.Traffic.Requests != 10 {
		t.Errorf("traffic.requests = %d, want 10", body.Traffic.Requests)
	}
	if body.Traffic.Successful != 6 {
		t.Errorf("traffic.successful = %d, want 6", body.Traffic.Successful)
	}
	if body.Traffic.ErrorPct != 25 {
		t.Errorf("traffic.errorPct = %v, want 25", body.Traffic.ErrorPct)
	}
	if body.Traffic.DeniedPct != 20 {
		t.Errorf("traffic.deniedPct = %v, want 20", body.Traffic.DeniedPct)
	}
}

func TestGetHealth_LogsTransitions(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	state := lifecycle.New()
	h := newHealthHandler(nil, state, HealthConfig{}, zap.New(core))

	getHealth(t, h)
	getHealth(t, h)
	if n := logs.FilterMessage("health status transition").Len(); n != 0 {
		t.Fatalf("transition logs = %d before any change, want 0", n)
	}

	state.SetShuttingDown(true)
	getHealth(t, h)

	entries := logs.FilterMessage("health status transition").All()
	if len(entries) != 1 {
		t.Fatalf("transition logs = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["previous_status"] != StatusHealthy || fields["current_status"] != StatusShuttingDown {
		t.Errorf("transition fields = %v", fields)
	}
}
