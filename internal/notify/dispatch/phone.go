package dispatch

import "strings"

// NormalizePhone strips formatting and converts a number to E.164 where it
// can. A leading "00" becomes "+"; a leading "0" is replaced with the
// default country code when one is configured. Returns "" when no
// subscriber digits remain.
func NormalizePhone(raw, defaultCountryCode string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && b.Len() == 0:
			b.WriteRune(r)
		}
	}

	n := b.String()
	digits := strings.TrimPrefix(n, "+")
	if digits == "" {
		return ""
	}

	switch {
	case strings.HasPrefix(n, "+"):
		return n
	case strings.HasPrefix(n, "00"):
		if len(n) == 2 {
			return ""
		}
		return "+" + n[2:]
	case strings.HasPrefix(n, "0") && defaultCountryCode != "":
		if len(n) == 1 {
			return ""
		}
		return "+" + strings.TrimPrefix(defaultCountryCode, "+") + n[1:]
	default:
		return n
	}
}
