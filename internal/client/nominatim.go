package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/kjstillabower/weather-intelligence-service/internal/models"
	"github.com/kjstillabower/weather-intelligence-service/internal/observability"
)

const (
	DefaultNominatimURL = "https://nominatim.openstreetmap.org/search"
	// Nominatim's usage policy requires an identifying User-Agent.
	DefaultUserAgent = "weather-intelligence-service/1.0"
)

// Geocoder resolves free text to candidate locations.
type Geocoder interface {
	Search(ctx context.Context, q string, limit int) ([]models.SearchResult, error)
}

// NominatimClient queries the OpenStreetMap Nominatim search API. It serves as the
// secondary search provider when the weather provider returns few matches.
type NominatimClient struct {
	baseURL   string
	userAgent string
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker
}

func NewNominatimClient(baseURL, userAgent string, timeout time.Duration) *NominatimClient {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &NominatimClient{
		baseURL:   baseURL,
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
		breaker:   newBreaker("nominatim", BreakerSettings{Enabled: true}),
	}
}

type nominatimPlace struct {
	PlaceID     json.Number `json:"place_id"`
	Lat         string      `json:"lat"`
	Lon         string      `json:"lon"`
	DisplayName string      `json:"display_name"`
	Address     struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		State   string `json:"state"`
		County  string `json:"county"`
		Country string `json:"country"`
	} `json:"address"`
}

// Search returns up to limit matches. Places with unparsable coordinates are skipped.
func (c *NominatimClient) Search(ctx context.Context, q string, limit int) ([]models.SearchResult, error) {
	if limit <= 0 {
		limit = 5
	}
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.search(ctx, q, limit)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: nominatim: %w", ErrUpstreamFailure, ErrCircuitOpen)
		}
		return nil, err
	}
	return out.([]models.SearchResult), nil
}

func (c *NominatimClient) search(ctx context.Context, q string, limit int) ([]models.SearchResult, error) {
	params := url.Values{}
	params.Set("q", q)
	params.Set("format", "json")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("addressdetails", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: nominatim request: %v", ErrUpstreamFailure, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	observability.UpstreamDuration.WithLabelValues("nominatim").Observe(time.Since(start).Seconds())
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues("nominatim", "error").Inc()
		return nil, fmt.Errorf("%w: nominatim: %v", ErrUpstreamFailure, err)
	}
	defer resp.Body.Close()
	observability.UpstreamCallsTotal.WithLabelValues("nominatim", statusLabel(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: nominatim HTTP %d", ErrUpstreamFailure, resp.StatusCode)
	}
	var places []nominatimPlace
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&places); err != nil {
		return nil, fmt.Errorf("%w: parse nominatim response: %v", ErrUpstreamFailure, err)
	}

	results := make([]models.SearchResult, 0, len(places))
	for _, p := range places {
		r, ok := p.toResult()
		if ok {
			results = append(results, r)
		}
	}
	return results, nil
}

func (p nominatimPlace) toResult() (models.SearchResult, bool) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return models.SearchResult{}, false
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return models.SearchResult{}, false
	}
	name := firstNonEmpty(p.Address.City, p.Address.Town, p.Address.Village)
	if name == "" {
		name, _, _ = strings.Cut(p.DisplayName, ",")
		name = strings.TrimSpace(name)
	}
	id, _ := p.PlaceID.Int64()
	return models.SearchResult{
		ID:      id,
		Name:    name,
		Region:  firstNonEmpty(p.Address.State, p.Address.County),
		Country: p.Address.Country,
		Lat:     lat,
		Lon:     lon,
	}, true
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
