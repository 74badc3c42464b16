package validation

import "strings"

// InSet reports whether value is one of the allowed tags (case-sensitive).
func InSet(value string, allowed []string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}

// NonEmpty reports whether s contains any non-whitespace characters.
func NonEmpty(s string) bool {
	return strings.TrimSpace(s) != ""
}

// MinLength reports whether s has at least n non-whitespace-trimmed characters.
func MinLength(s string, n int) bool {
	return len(strings.TrimSpace(s)) >= n
}

// PositivePrice reports whether p is a usable positive amount.
func PositivePrice(p float64) bool {
	return p > 0
}

// ValidRating reports whether r is a star rating between 1 and 5.
func ValidRating(r int) bool {
	return r >= 1 && r <= 5
}
