package validation

import (
	"errors"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ErrLocationEmpty is returned when location is empty or whitespace-only after trim.
var ErrLocationEmpty = errors.New("location is required")

// ErrLocationTooShort is returned when location length is below the minimum.
var ErrLocationTooShort = errors.New("location too short")

// ErrLocationTooLong is returned when location length exceeds the maximum.
var ErrLocationTooLong = errors.New("location too long")

// ErrLocationInvalidChars is returned when location contains disallowed characters.
var ErrLocationInvalidChars = errors.New("location contains invalid characters")

// ErrCoordinatesMissing is returned when lat or lon is absent.
var ErrCoordinatesMissing = errors.New("lat and lon are required")

// ErrCoordinatesInvalid is returned when lat or lon is not a number or out of range.
var ErrCoordinatesInvalid = errors.New("coordinates out of range: lat must be within [-90, 90] and lon within [-180, 180]")

// ValidateQuery trims the input, enforces length bounds (minLen, maxLen in runes),
// and restricts to allowed characters: letters (Unicode), digits, space, comma, hyphen,
// period, apostrophe. Returns the trimmed string or an error suitable for 400 INVALID_LOCATION.
func ValidateQuery(input string, minLen, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	n := len(r)
	if n == 0 {
		return "", ErrLocationEmpty
	}
	if minLen > 0 && n < minLen {
		return "", ErrLocationTooShort
	}
	if maxLen > 0 && n > maxLen {
		return "", ErrLocationTooLong
	}
	for _, c := range r {
		if !isAllowedQueryRune(c) {
			return "", ErrLocationInvalidChars
		}
	}
	return s, nil
}

// isAllowedQueryRune covers names like "St. John's" and "Aix-en-Provence".
func isAllowedQueryRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsMark(r) {
		return true
	}
	switch r {
	case ' ', ',', '-', '.', '\'':
		return true
	}
	return false
}

type coordinates struct {
	Lat float64 `validate:"gte=-90,lte=90"`
	Lon float64 `validate:"gte=-180,lte=180"`
}

// ValidateCoordinates parses decimal-degree strings and checks their ranges.
func ValidateCoordinates(latStr, lonStr string) (float64, float64, error) {
	latStr, lonStr = strings.TrimSpace(latStr), strings.TrimSpace(lonStr)
	if latStr == "" || lonStr == "" {
		return 0, 0, ErrCoordinatesMissing
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return 0, 0, ErrCoordinatesInvalid
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return 0, 0, ErrCoordinatesInvalid
	}
	if err := validate.Struct(coordinates{Lat: lat, Lon: lon}); err != nil {
		return 0, 0, ErrCoordinatesInvalid
	}
	return lat, lon, nil
}
