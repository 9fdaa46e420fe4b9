package validation

import (
	"errors"
	"strings"
	"unicode"
)

// MaxCityNameLength caps sanitized city names, counted in runes.
const MaxCityNameLength = 100

// ErrLocationEmpty is returned when location is empty after sanitization.
var ErrLocationEmpty = errors.New("location is required")

// ErrLocationTooShort is returned when location length is below the minimum.
var ErrLocationTooShort = errors.New("location too short")

// ErrLocationTooLong is returned when location length exceeds the maximum.
var ErrLocationTooLong = errors.New("location too long")

// SanitizeCityName trims the input, drops every rune outside ASCII letters, digits,
// underscore, space, comma, period and hyphen, and truncates to MaxCityNameLength.
// Never fails; the result may be empty.
func SanitizeCityName(text string) string {
	s := strings.TrimSpace(text)
	var b strings.Builder
	b.Grow(len(s))
	n := 0
	for _, r := range s {
		if !isAllowedCityRune(r) {
			continue
		}
		if n == MaxCityNameLength {
			break
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

// ValidateLocation sanitizes the input and enforces length bounds (minLen, maxLen in runes,
// zero disables a bound). Returns the sanitized, trimmed string or an error suitable for
// 400 INVALID_QUERY responses. Case folding is left to the service layer.
func ValidateLocation(input string, minLen, maxLen int) (string, error) {
	s := strings.TrimSpace(SanitizeCityName(input))
	n := len([]rune(s))
	if n == 0 {
		return "", ErrLocationEmpty
	}
	if minLen > 0 && n < minLen {
		return "", ErrLocationTooShort
	}
	if maxLen > 0 && n > maxLen {
		return "", ErrLocationTooLong
	}
	return s, nil
}

func isAllowedCityRune(r rune) bool {
	if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
		return true
	}
	switch r {
	case ' ', '_', ',', '.', '-':
		return true
	}
	return false
}
