package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-intelligence-service/internal/models"
	"github.com/kjstillabower/weather-intelligence-service/internal/observability"
	"github.com/kjstillabower/weather-intelligence-service/internal/validation"
)

const (
	MinSearchLength   = 2
	MaxSearchResults  = 10
	minPrimaryResults = 3
)

// Search returns candidate locations for free text. Queries shorter than
// MinSearchLength after sanitization return an empty list without an upstream call.
// The weather provider answers first; the secondary geocoder tops up thin result
// sets and stands in when the provider fails.
func (s *WeatherService) Search(ctx context.Context, q string) ([]models.SearchResult, error) {
	logger := observability.LoggerFrom(ctx)
	clean := strings.TrimSpace(validation.SanitizeCityName(q))
	if len([]rune(clean)) < MinSearchLength {
		return []models.SearchResult{}, nil
	}
	key := strings.ToLower(clean)

	if cached, ok := s.searchCache.Get(key); ok {
		observability.CacheLookupsTotal.WithLabelValues("search", "hit").Inc()
		observability.SearchRequestsTotal.WithLabelValues("cache").Inc()
		return cached, nil
	}
	observability.CacheLookupsTotal.WithLabelValues("search", "miss").Inc()

	primary, perr := s.client.Search(ctx, clean)
	if perr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn("primary search failed", zap.String("q", clean), zap.Error(perr))
	}

	if s.geocoder == nil || (perr == nil && len(primary) >= minPrimaryResults) {
		if perr != nil {
			return nil, fmt.Errorf("search %q: %w", clean, perr)
		}
		results := truncate(primary)
		s.searchCache.Set(key, results)
		observability.SearchRequestsTotal.WithLabelValues("primary").Inc()
		return results, nil
	}

	secondary, serr := s.geocoder.Search(ctx, clean, MaxSearchResults)
	switch {
	case serr != nil && perr != nil:
		logger.Warn("secondary search failed", zap.String("q", clean), zap.Error(serr))
		return nil, fmt.Errorf("search %q: %w", clean, perr)
	case serr != nil:
		// Not cached so the next request retries the secondary provider.
		logger.Warn("secondary search failed, returning primary results", zap.String("q", clean), zap.Error(serr))
		observability.SearchRequestsTotal.WithLabelValues("primary_only").Inc()
		return truncate(primary), nil
	case perr != nil:
		observability.SearchRequestsTotal.WithLabelValues("secondary").Inc()
		return truncate(mergeResults(nil, secondary)), nil
	}

	results := truncate(mergeResults(primary, secondary))
	s.searchCache.Set(key, results)
	observability.SearchRequestsTotal.WithLabelValues("merged").Inc()
	return results, nil
}

// CleanupSearchCache sweeps expired search entries. Returns the number removed.
func (s *WeatherService) CleanupSearchCache() int {
	return s.searchCache.Cleanup()
}

// SearchCacheLen reports the number of stored search entries, expired or not.
func (s *WeatherService) SearchCacheLen() int {
	return s.searchCache.Len()
}

// mergeResults appends secondary to primary, dropping any result whose coordinates
// rounded to two decimals were already seen. Order is preserved.
func mergeResults(primary, secondary []models.SearchResult) []models.SearchResult {
	seen := make(map[string]struct{}, len(primary)+len(secondary))
	out := make([]models.SearchResult, 0, len(primary)+len(secondary))
	for _, list := range [][]models.SearchResult{primary, secondary} {
		for _, r := range list {
			k := dedupeKey(r)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}

func dedupeKey(r models.SearchResult) string {
	round := func(v float64) float64 {
		v = math.Round(v*100) / 100
		if v == 0 {
			return 0
		}
		return v
	}
	return fmt.Sprintf("%.2f,%.2f", round(r.Lat), round(r.Lon))
}

func truncate(results []models.SearchResult) []models.SearchResult {
	if results == nil {
		return []models.SearchResult{}
	}
	if len(results) > MaxSearchResults {
		return results[:MaxSearchResults]
	}
	return results
}
