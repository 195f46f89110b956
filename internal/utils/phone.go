package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lottoplay/momo-backend/internal/models"
)

// DefaultCountryCode is prefixed to local subscriber numbers that arrive
// without one.
const DefaultCountryCode = "237"

// Carrier number ranges per payment method. A number must already be
// normalized to 237XXXXXXXXX form before matching.
var methodPhonePatterns = map[models.PaymentMethod]*regexp.Regexp{
	models.MethodMTNMomo:     regexp.MustCompile(`^237(67\d{7}|65[0-4]\d{6}|68\d{7})$`),
	models.MethodOrangeMoney: regexp.MustCompile(`^237(69\d{7}|65[5-9]\d{6})$`),
}

var (
	phoneSeparators = strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "")
	digitsOnly      = regexp.MustCompile(`^\d+$`)
)

// NormalizePhone strips separators and a leading "+" and prefixes the
// default country code when the number is a bare 9-digit local number.
// It does not validate carrier ranges; see ValidatePhoneForMethod.
func NormalizePhone(phone string) string {
	p := phoneSeparators.Replace(strings.TrimSpace(phone))
	p = strings.TrimPrefix(p, "+")
	if len(p) == 9 && !strings.HasPrefix(p, DefaultCountryCode) {
		p = DefaultCountryCode + p
	}
	return p
}

// ValidatePhoneForMethod normalizes phone and checks it against the
// carrier ranges valid for the given payment method. It returns the
// normalized number on success and never rewrites an invalid number
// into a valid one.
func ValidatePhoneForMethod(phone string, method models.PaymentMethod) (string, error) {
	pattern, ok := methodPhonePatterns[method]
	if !ok {
		return "", fmt.Errorf("unsupported payment method: %s", method)
	}

	normalized := NormalizePhone(phone)
	if normalized == "" {
		return "", fmt.Errorf("phone number is required")
	}
	if !digitsOnly.MatchString(normalized) {
		return "", fmt.Errorf("phone number %q contains non-numeric characters", phone)
	}
	if !pattern.MatchString(normalized) {
		return "", fmt.Errorf("phone number %s is not a valid %s subscriber number", normalized, method)
	}
	return normalized, nil
}
