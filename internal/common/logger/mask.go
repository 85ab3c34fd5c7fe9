package logger

import "strings"

// MaskPhone keeps the first two and last two characters of a phone number.
func MaskPhone(phone string) string {
	p := []rune(strings.TrimSpace(phone))
	if len(p) <= 4 {
		return strings.Repeat("*", len(p))
	}
	return string(p[:2]) + strings.Repeat("*", len(p)-4) + string(p[len(p)-2:])
}

// MaskEmail keeps the first character of the local part and the full domain.
func MaskEmail(email string) string {
	e := strings.TrimSpace(email)
	at := strings.LastIndex(e, "@")
	if at <= 0 {
		return "***"
	}
	first := []rune(e[:at])[0]
	return string(first) + "***" + e[at:]
}

// RedactContacts replaces every occurrence of the given phone numbers or
// email addresses in text with their masked form.
func RedactContacts(text string, contacts ...string) string {
	for _, c := range contacts {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		masked := MaskPhone(c)
		if strings.Contains(c, "@") {
			masked = MaskEmail(c)
		}
		text = strings.ReplaceAll(text, c, masked)
	}
	return text
}
