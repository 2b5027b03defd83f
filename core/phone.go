package core

import "strings"

// defaultCountryCode is used when a number is entered in local format
// (leading zero). The app's audience is Israeli, so 972 unless configured.
const defaultCountryCode = "972"

// CanonicalPhone normalizes a human-entered phone number to E.164 form
// ("+972501234567"). A local number with a leading zero gets the country
// code; a number already carrying a country code passes through.
func CanonicalPhone(raw, countryCode string) (string, error) {
	if countryCode == "" {
		countryCode = defaultCountryCode
	}
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return "", errf(KindInvalidArgument, "phone number is required")
	}
	if strings.HasPrefix(digits, "0") {
		digits = countryCode + strings.TrimLeft(digits, "0")
	}
	return "+" + digits, nil
}

// PhoneDigits returns the canonical number without the plus. It is the
// document key for OTP records and the derived identifier for profiles and
// identity accounts.
func PhoneDigits(canonical string) string {
	return strings.TrimPrefix(canonical, "+")
}
