package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-intelligence-service/internal/observability"
	"github.com/kjstillabower/weather-intelligence-service/internal/ratelimit"
)

// RouterConfig carries the middleware dependencies. Nil limiters disable that gate.
type RouterConfig struct {
	Logger         *zap.Logger
	InFlight       *InFlightTracker
	ClientLimiter  *ratelimit.Limiter
	GlobalLimiter  *rate.Limiter
	RequestTimeout time.Duration
}

// NewRouter wires routes and middleware: correlation ID, metrics and in-flight tracking on
// every route; traffic outcome, per-client limit, global limit and timeout on /v1.
func NewRouter(h *Handler, cfg RouterConfig) *mux.Router {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.InFlight == nil {
		cfg.InFlight = &InFlightTracker{}
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}

	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(cfg.Logger))
	router.Use(MetricsMiddleware)
	router.Use(cfg.InFlight.Middleware)
	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler()).Methods(http.MethodGet)

	v1 := router.PathPrefix("/v1").Subrouter()
	v1.Use(TrafficMiddleware(h.tracker))
	v1.Use(ClientRateLimitMiddleware(cfg.ClientLimiter))
	v1.Use(GlobalRateLimitMiddleware(cfg.GlobalLimiter))
	v1.Use(TimeoutMiddleware(cfg.RequestTimeout))
	v1.HandleFunc("/weather", h.GetWeather).Methods(http.MethodGet)
	v1.HandleFunc("/search", h.Search).Methods(http.MethodGet)
	return router
}
