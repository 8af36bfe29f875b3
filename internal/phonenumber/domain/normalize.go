package domain

import "strings"

// Digits strips everything but ASCII digits.
func Digits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// E164 formats a number as +<digits>, assuming NANP for bare 10-digit numbers.
func E164(raw string) string {
	digits := Digits(raw)
	switch {
	case digits == "":
		return ""
	case len(digits) == 10:
		return "+1" + digits
	default:
		return "+" + digits
	}
}

// Last10 returns the trailing ten digits used for matching.
func Last10(raw string) string {
	digits := Digits(raw)
	if len(digits) > 10 {
		return digits[len(digits)-10:]
	}
	return digits
}

// Matches compares two numbers by their last ten digits.
func Matches(a, b string) bool {
	la, lb := Last10(a), Last10(b)
	return la != "" && la == lb
}
