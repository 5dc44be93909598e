package utils

import "unicode/utf8"

// DefaultMaxStringLength is the default preview length used in error messages.
const DefaultMaxStringLength = 500

// TruncateString shortens s to at most maxLen runes and appends suffix when
// anything was cut. If maxLen is zero or negative, [DefaultMaxStringLength]
// is used instead.
func TruncateString(s string, maxLen int, suffix string) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxStringLength
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}

	count := 0
	for index := range s {
		if count == maxLen {
			return s[:index] + suffix
		}
		count++
	}
	return s
}
