package utils

import (
	"strings"
	"unicode"
)

// Truncate returns s truncated to maxLen bytes, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// HasCJK reports whether s contains at least one Han character.
func HasCJK(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// SegmentCJK returns s with every Han character separated by spaces, so that a
// token-based analyzer indexes each character as its own term. Non-Han runs are
// kept intact as whole tokens. Used for single-character matching on short
// logographic queries, where word segmentation would otherwise miss partial words.
func SegmentCJK(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 2)
	prevHan := false
	for i, r := range s {
		han := unicode.Is(unicode.Han, r)
		if i > 0 && (han || prevHan) && !unicode.IsSpace(r) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
		prevHan = han
	}
	return b.String()
}

// CJKOverlap returns the fraction of Han characters in query that also occur
// in text, in [0,1]. Returns 0 when query has no Han characters.
func CJKOverlap(query, text string) float64 {
	var total, matched int
	seen := make(map[rune]struct{})
	for _, r := range text {
		if unicode.Is(unicode.Han, r) {
			seen[r] = struct{}{}
		}
	}
	for _, r := range query {
		if !unicode.Is(unicode.Han, r) {
			continue
		}
		total++
		if _, ok := seen[r]; ok {
			matched++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(matched) / float64(total)
}
