package utils

import (
	"fmt"
	"unicode/utf8"
)

// DefaultMaxStringLength is the default rune budget for log previews.
const DefaultMaxStringLength = 500

// Truncate shortens s to at most maxRunes runes and records the original
// length in a suffix. It never splits a multi-byte character. A non-positive
// maxRunes falls back to DefaultMaxStringLength.
func Truncate(s string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = DefaultMaxStringLength
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	runes := []rune(s)
	return fmt.Sprintf("%s... (truncated, total: %d chars)", string(runes[:maxRunes]), len(runes))
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
