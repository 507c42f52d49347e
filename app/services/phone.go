// Package services provides external service integrations and technical concerns like gateway clients and template rendering
package services

import (
	"fmt"
	"strings"

	"github.com/zapflow/billing-engine/utils"
)

// NormalizePhone converts a free-form phone string into E.164. The country
// heuristic is opinionated toward Brazilian numbers: a bare 10/11-digit
// national number gets the configured country code prepended. Pass an empty
// countryCode to use the default.
func NormalizePhone(raw string, countryCode string) (string, error) {
	if countryCode == "" {
		countryCode = utils.DefaultCountryCode
	}

	hasPlus := strings.HasPrefix(strings.TrimSpace(raw), "+")
	digits := digitsOnly(raw)

	if len(digits) < 10 {
		return "", fmt.Errorf("invalid phone number %q: too few digits", raw)
	}
	if len(digits) > 15 {
		return "", fmt.Errorf("invalid phone number %q: too many digits", raw)
	}

	if hasPlus {
		return "+" + digits, nil
	}

	// National Brazilian numbers are DDD (2 digits) + 8 or 9 digit subscriber.
	if len(digits) == 10 || len(digits) == 11 {
		return "+" + countryCode + digits, nil
	}

	// Already carries a country code.
	return "+" + digits, nil
}

// PhoneDigits strips the leading '+' for gateways that want bare digits.
func PhoneDigits(e164 string) string {
	return strings.TrimPrefix(e164, "+")
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
