package normalizer

import (
	"strings"
	"unicode"
)

// LooksLikeDate reports whether a cell round-trips through NormalizeDate.
func LooksLikeDate(cell string) bool {
	return NormalizeDate(cell) != ""
}

// LooksLikeAmount reports whether a cell is a bare monetary value: digits,
// separators, sign, parentheses and currency symbols only, and it round-trips
// through NormalizeAmount. Text such as "Invoice 123" and dates do not qualify.
func LooksLikeAmount(cell string) bool {
	s := strings.TrimSpace(cell)
	if s == "" {
		return false
	}
	hasDigit := false
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(".,-+() ", r), unicode.Is(unicode.Sc, r):
		default:
			return false
		}
	}
	if !hasDigit || LooksLikeDate(s) {
		return false
	}
	_, ok := NormalizeAmount(s)
	return ok
}
