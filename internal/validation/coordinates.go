package validation

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultPrecision is the number of decimals kept by NormalizeCoordinates (about 111 m).
// Lower values raise the cache hit rate at the cost of location accuracy.
const DefaultPrecision = 3

// MaxPrecision bounds configurable precision; beyond it cache keys stop grouping nearby points.
const MaxPrecision = 6

// ErrInvalidCoordinates is returned for unparsable, non-finite or out-of-range coordinates.
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// ValidateCoordinates reports whether lat is in [-90, 90] and lon in [-180, 180].
// NaN and infinities are rejected.
func ValidateCoordinates(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// NormalizeCoordinates rounds both values to precision decimals and joins them as "lat,lon".
// Trailing zeros are dropped and negative zero is written as 0, so re-normalizing an
// already normalized pair yields the same key. Call only after ValidateCoordinates.
func NormalizeCoordinates(lat, lon float64, precision int) string {
	if precision < 0 || precision > MaxPrecision {
		precision = DefaultPrecision
	}
	return formatRounded(lat, precision) + "," + formatRounded(lon, precision)
}

// ParseCoordinates parses query-string coordinates and validates them.
func ParseCoordinates(latStr, lonStr string) (float64, float64, error) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: lat %q", ErrInvalidCoordinates, latStr)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: lon %q", ErrInvalidCoordinates, lonStr)
	}
	if !ValidateCoordinates(lat, lon) {
		return 0, 0, fmt.Errorf("%w: %v,%v out of range", ErrInvalidCoordinates, lat, lon)
	}
	return lat, lon, nil
}

func formatRounded(v float64, precision int) string {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', precision, 64), 64)
	if err != nil {
		r = v
	}
	if r == 0 {
		// -0
		r = 0
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}
