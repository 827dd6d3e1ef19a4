package models

import "strings"

// CanonicalPhone normalizes a raw phone number to +<country><digits>.
//
// The canonical form is derived once per registration and reused for every
// downstream call, so availability checks and stored values agree
// bit-for-bit. defaultCountry is the dialing code assumed for national
// numbers (10 digits in the markets the portal serves).
func CanonicalPhone(raw, defaultCountry string) string {
	hadPlus := strings.HasPrefix(strings.TrimSpace(raw), "+")

	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}

	// "00" international prefix is equivalent to "+".
	if !hadPlus && strings.HasPrefix(digits, "00") {
		digits = digits[2:]
		hadPlus = true
	}

	switch {
	case hadPlus:
		return "+" + digits
	case len(digits) == 10:
		// National number, prepend the default country code.
		return "+" + defaultCountry + digits
	default:
		// Anything else already carries its own country code.
		return "+" + digits
	}
}
