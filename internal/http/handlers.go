package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-intelligence-service/internal/client"
	"github.com/kjstillabower/weather-intelligence-service/internal/lifecycle"
	"github.com/kjstillabower/weather-intelligence-service/internal/models"
	"github.com/kjstillabower/weather-intelligence-service/internal/observability"
	"github.com/kjstillabower/weather-intelligence-service/internal/traffic"
	"github.com/kjstillabower/weather-intelligence-service/internal/validation"
)

const (
	weatherCacheControl = "public, s-maxage=900, stale-while-revalidate=600"
	searchCacheControl  = "public, max-age=3600"
)

var validate = validator.New()

// WeatherService is the orchestrator as seen by the HTTP layer.
type WeatherService interface {
	Lookup(ctx context.Context, q models.Query) (models.WeatherResult, bool, error)
	Search(ctx context.Context, q string) ([]models.SearchResult, error)
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	weatherService WeatherService
	tracker        *traffic.Tracker
	state          *lifecycle.State
	health         HealthConfig
	logger         *zap.Logger

	healthStatusMu   sync.Mutex
	healthStatusPrev string
}

// NewHandler returns a new Handler. A nil tracker or state gets a fresh one.
func NewHandler(weatherService WeatherService, tracker *traffic.Tracker, state *lifecycle.State, health HealthConfig, logger *zap.Logger) *Handler {
	if tracker == nil {
		tracker = traffic.NewTracker()
	}
	if state == nil {
		state = lifecycle.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		weatherService: weatherService,
		tracker:        tracker,
		state:          state,
		health:         health.withDefaults(),
		logger:         logger,
	}
}

// weatherQuery holds GET /v1/weather parameters. Either city or both coordinates.
type weatherQuery struct {
	City string `validate:"required_without_all=Lat Lon,max=200"`
	Lat  string `validate:"required_with=Lon,max=32"`
	Lon  string `validate:"required_with=Lat,max=32"`
}

type searchQuery struct {
	Q string `validate:"max=200"`
}

// GetWeather handles GET /v1/weather?city=... or ?lat=..&lon=...
// Coordinates take precedence when both forms are present.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	req := weatherQuery{
		City: strings.TrimSpace(params.Get("city")),
		Lat:  strings.TrimSpace(params.Get("lat")),
		Lon:  strings.TrimSpace(params.Get("lon")),
	}
	if err := validate.Struct(req); err != nil {
		writeValidationError(w, r, err)
		return
	}

	q := models.CityQuery(req.City)
	if req.Lat != "" {
		lat, lon, err := validation.ParseCoordinates(req.Lat, req.Lon)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		q = models.CoordinateQuery(lat, lon)
	}

	result, cached, err := h.weatherService.Lookup(r.Context(), q)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", weatherCacheControl)
	if cached {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	writeJSON(w, http.StatusOK, result)
}

// Search handles GET /v1/search?q=...
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	req := searchQuery{Q: r.URL.Query().Get("q")}
	if err := validate.Struct(req); err != nil {
		writeValidationError(w, r, err)
		return
	}
	results, err := h.weatherService.Search(r.Context(), req.Q)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", searchCacheControl)
	writeJSON(w, http.StatusOK, results)
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes {"error":{"code","message","requestId"}} with the request's correlation ID.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": observability.CorrelationID(r.Context()),
		},
	})
}

func writeValidationError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		f := verrs[0]
		switch f.Field() {
		case "Lat", "Lon":
			writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", "lat and lon must be provided together")
			return
		case "City":
			if f.Tag() == "required_without_all" {
				writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", "city or lat/lon is required")
				return
			}
		}
	}
	writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", "query parameter too long")
}

// writeServiceError maps the error taxonomy onto HTTP responses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	logger := observability.LoggerFrom(r.Context())
	switch {
	case errors.Is(err, validation.ErrInvalidCoordinates):
		writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", "lat must be within [-90, 90] and lon within [-180, 180]")
	case errors.Is(err, validation.ErrLocationEmpty),
		errors.Is(err, validation.ErrLocationTooShort),
		errors.Is(err, validation.ErrLocationTooLong):
		writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", err.Error())
	case errors.Is(err, client.ErrLocationNotFound):
		writeError(w, r, http.StatusNotFound, "LOCATION_NOT_FOUND", "No matching location found")
	case errors.Is(err, client.ErrInvalidAPIKey):
		logger.Error("upstream rejected API key", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "CONFIGURATION_ERROR", "Weather provider is misconfigured")
	default:
		logger.Debug("upstream error", zap.String("category", string(client.CategorizeError(err))), zap.Error(err))
		writeError(w, r, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE", "Unable to fetch weather data")
	}
}
