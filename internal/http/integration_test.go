//go:build integration
// +build integration

package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-intelligence-service/internal/models"
	"github.com/kjstillabower/weather-intelligence-service/internal/ratelimit"
	"github.com/kjstillabower/weather-intelligence-service/internal/testhelpers"
)

func setupIntegrationServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := testhelpers.GetIntegrationConfig(t)
	svc, _ := testhelpers.SetupIntegrationService(t, cfg)
	h := NewHandler(svc, nil, nil, HealthConfig{}, zap.NewNop())
	srv := httptest.NewServer(NewRouter(h, RouterConfig{
		ClientLimiter:  ratelimit.New(60, time.Minute),
		RequestTimeout: 15 * time.Second,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestIntegration_GetWeather_MissThenHit(t *testing.T) {
	srv := setupIntegrationServer(t)

	for i, want := range []string{"MISS", "HIT"} {
		resp, err := http.Get(srv.URL + "/v1/weather?city=London")
		if err != nil {
			t.Fatalf("GET /v1/weather error = %v", err)
		}
		var result models.WeatherResult
		err = json.NewDecoder(resp.Body).Decode(&result)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i, resp.StatusCode)
		}
		if got := resp.Header.Get("X-Cache"); got != want {
			t.Errorf("request %d X-Cache = %q, want %q", i, got, want)
		}
		if result.Location.Name == "" || result.Intelligence.Explanation.Headline == "" {
			t.Errorf("incomplete result: %+v", result)
		}
	}
}

func TestIntegration_GetWeather_Coordinates(t *testing.T) {
	srv := setupIntegrationServer(t)
	resp, err := http.Get(srv.URL + "/v1/weather?lat=48.8566&lon=2.3522")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestIntegration_GetWeather_NotFound(t *testing.T) {
	srv := setupIntegrationServer(t)
	resp, err := http.Get(srv.URL + "/v1/weather?city=Xyzzyplughnowhere")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestIntegration_Search(t *testing.T) {
	srv := setupIntegrationServer(t)
	resp, err := http.Get(srv.URL + "/v1/search?q=Lond")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()

	var results []models.SearchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.StatusCode != http.StatusOK || len(results) == 0 {
		t.Errorf("status = %d results = %d, want 200 with results", resp.StatusCode, len(results))
	}
	if len(results) > 10 {
		t.Errorf("results = %d, want at most 10", len(results))
	}
}
