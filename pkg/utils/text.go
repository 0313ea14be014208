// Package utils provides shared utilities for text and logging.
package utils

import "strings"

// Clip returns the first maxRunes runes of s, trimmed of surrounding whitespace.
// Counting is rune-based so multi-byte text is never cut mid-character.
// If maxRunes is 0 or negative, returns s trimmed.
func Clip(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return strings.TrimSpace(s)
	}
	runes := []rune(s)
	if len(runes) > maxRunes {
		runes = runes[:maxRunes]
	}
	return strings.TrimSpace(string(runes))
}
