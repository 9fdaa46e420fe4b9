package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-intelligence-service/internal/models"
	"github.com/kjstillabower/weather-intelligence-service/internal/observability"
)

// WeatherClient is the upstream weather provider as seen by the service layer.
type WeatherClient interface {
	GetCurrent(ctx context.Context, q string) (models.Location, models.CurrentConditions, error)
	GetForecast(ctx context.Context, q string, days int) ([]models.ForecastDay, error)
	Search(ctx context.Context, q string) ([]models.SearchResult, error)
	ValidateAPIKey(ctx context.Context) error
}

var (
	ErrInvalidAPIKey    = errors.New("invalid API key")
	ErrLocationNotFound = errors.New("location not found")
	ErrUpstreamFailure  = errors.New("upstream failure")
	ErrRateLimited      = errors.New("rate limited")
	ErrCircuitOpen      = errors.New("circuit breaker open")
)

// weatherapi.com error codes carried in {"error":{"code":..}}.
const (
	codeKeyNotProvided = 1002
	codeNoLocation     = 1006
	codeKeyInvalid     = 2006
	codeQuotaExceeded  = 2007
	codeKeyDisabled    = 2008
)

const (
	DefaultAPIURL       = "https://api.weatherapi.com/v1"
	DefaultForecastDays = 7
	minAPIKeyLength     = 10
	maxBodyBytes        = 4 << 20
)

// Options configures a WeatherAPIClient. Zero values use defaults; RetryAttempts of 1
// or less disables retry.
type Options struct {
	APIURL         string
	Timeout        time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	Breaker        BreakerSettings
	HTTPClient     *http.Client
}

// WeatherAPIClient calls weatherapi.com. Every call passes through the circuit breaker
// and the optional retry policy.
type WeatherAPIClient struct {
	apiKey         string
	apiURL         string
	timeout        time.Duration
	client         *http.Client
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	breaker        *gobreaker.CircuitBreaker
}

// NewWeatherAPIClient returns ErrInvalidAPIKey when the key is missing or implausibly short.
func NewWeatherAPIClient(apiKey string, opts Options) (*WeatherAPIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if len(apiKey) < minAPIKeyLength {
		return nil, fmt.Errorf("%w: API key appears invalid (too short)", ErrInvalidAPIKey)
	}
	if opts.APIURL == "" {
		opts.APIURL = DefaultAPIURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	if opts.RetryAttempts < 1 {
		opts.RetryAttempts = 1
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = 100 * time.Millisecond
	}
	if opts.RetryMaxDelay <= 0 {
		opts.RetryMaxDelay = 2 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	return &WeatherAPIClient{
		apiKey:         apiKey,
		apiURL:         strings.TrimRight(opts.APIURL, "/"),
		timeout:        opts.Timeout,
		client:         httpClient,
		retryAttempts:  opts.RetryAttempts,
		retryBaseDelay: opts.RetryBaseDelay,
		retryMaxDelay:  opts.RetryMaxDelay,
		breaker:        newBreaker("weatherapi", opts.Breaker),
	}, nil
}

// GetCurrent fetches current conditions (with air quality) for a city name or "lat,lon".
func (c *WeatherAPIClient) GetCurrent(ctx context.Context, q string) (models.Location, models.CurrentConditions, error) {
	params := url.Values{}
	params.Set("q", q)
	params.Set("aqi", "yes")

	body, err := c.get(ctx, "current", params)
	if err != nil {
		return models.Location{}, models.CurrentConditions{}, err
	}
	return parseCurrent(body)
}

// GetForecast fetches a days-long daily and hourly forecast.
func (c *WeatherAPIClient) GetForecast(ctx context.Context, q string, days int) ([]models.ForecastDay, error) {
	if days <= 0 {
		days = DefaultForecastDays
	}
	params := url.Values{}
	params.Set("q", q)
	params.Set("days", strconv.Itoa(days))
	params.Set("aqi", "no")
	params.Set("alerts", "no")

	body, err := c.get(ctx, "forecast", params)
	if err != nil {
		return nil, err
	}
	return parseForecast(body)
}

// Search returns candidate locations matching free text.
func (c *WeatherAPIClient) Search(ctx context.Context, q string) ([]models.SearchResult, error) {
	params := url.Values{}
	params.Set("q", q)

	body, err := c.get(ctx, "search", params)
	if err != nil {
		return nil, err
	}
	return parseSearch(body)
}

// ValidateAPIKey issues a single lightweight request to confirm the key is accepted.
func (c *WeatherAPIClient) ValidateAPIKey(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	params := url.Values{}
	params.Set("q", "London")
	_, err := c.callOnce(ctx, "current", params)
	if errors.Is(err, ErrInvalidAPIKey) {
		return fmt.Errorf("%w: API key is invalid or not activated", err)
	}
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// BreakerState reports the circuit breaker state: "closed", "half-open" or "open".
func (c *WeatherAPIClient) BreakerState() string {
	return c.breaker.State().String()
}

// get runs one logical call: retries wrap the breaker, which wraps the HTTP request.
func (c *WeatherAPIClient) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	var body []byte
	operation := func() error {
		out, err := c.breaker.Execute(func() (interface{}, error) {
			return c.callOnce(ctx, endpoint, params)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(fmt.Errorf("%w: %w", ErrUpstreamFailure, ErrCircuitOpen))
			}
			if !isRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		body = out.([]byte)
		return nil
	}

	err := backoff.RetryNotify(operation, c.retryPolicy(ctx), func(err error, _ time.Duration) {
		observability.UpstreamRetriesTotal.Inc()
		observability.LoggerFrom(ctx).Warn("retrying upstream call",
			zap.String("endpoint", endpoint),
			zap.Error(err),
		)
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *WeatherAPIClient) retryPolicy(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryBaseDelay
	bo.MaxInterval = c.retryMaxDelay
	bo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.retryAttempts-1)), ctx)
}

// callOnce performs a single HTTP request and maps the response to a body or a sentinel error.
func (c *WeatherAPIClient) callOnce(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	start := time.Now()
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, endpoint, params)
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, fmt.Errorf("%w: build request: %v", ErrUpstreamFailure, err)
	}

	resp, err := c.client.Do(req)
	observability.UpstreamDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.UpstreamCallsTotal.WithLabelValues(endpoint, "error").Inc()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: request timeout: %v", ErrUpstreamFailure, err)
		}
		return nil, fmt.Errorf("%w: http request failed: %v", ErrUpstreamFailure, err)
	}
	defer resp.Body.Close()

	observability.UpstreamCallsTotal.WithLabelValues(endpoint, statusLabel(resp.StatusCode)).Inc()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response body: %v", ErrUpstreamFailure, err)
	}
	if err := handleErrorResponse(resp.StatusCode, body); err != nil {
		return nil, err
	}
	return body, nil
}

func (c *WeatherAPIClient) buildRequest(ctx context.Context, endpoint string, params url.Values) (*http.Request, error) {
	u, err := url.Parse(c.apiURL + "/" + endpoint + ".json")
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("key", c.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if id := observability.CorrelationID(ctx); id != "" {
		req.Header.Set("X-Correlation-ID", id)
	}
	return req, nil
}

// handleErrorResponse maps a non-2xx response onto the error taxonomy, using the
// provider's error code when the body carries one.
func handleErrorResponse(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	code := gjson.GetBytes(body, "error.code").Int()
	msg := gjson.GetBytes(body, "error.message").String()
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", status)
	}

	switch {
	case code == codeNoLocation || status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrLocationNotFound, msg)
	case code == codeQuotaExceeded || status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, msg)
	case code == codeKeyNotProvided || code == codeKeyInvalid || code == codeKeyDisabled ||
		status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrInvalidAPIKey, msg)
	}
	return fmt.Errorf("%w: HTTP %d: %s", ErrUpstreamFailure, status, msg)
}

// isRetryable reports whether a failed call may succeed on a later attempt.
func isRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamFailure)
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == http.StatusTooManyRequests {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
