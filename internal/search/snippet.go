package search

import (
	"strings"
	"unicode/utf8"
)

// Snippet returns a window of content around the first query term occurrence,
// or the content prefix when no term matches. Boundaries land on valid UTF-8.
func Snippet(content, query string, maxLen int) string {
	if maxLen <= 0 || len(content) <= maxLen {
		return content
	}

	idx := -1
	contentLower := strings.ToLower(content)
	for _, term := range strings.Fields(strings.ToLower(query)) {
		if i := strings.Index(contentLower, term); i >= 0 && (idx < 0 || i < idx) {
			idx = i
		}
	}
	if idx < 0 {
		return truncateUTF8(content, maxLen) + "..."
	}

	start := idx - maxLen/4
	if start < 0 {
		start = 0
	}
	for start > 0 && !utf8.RuneStart(content[start]) {
		start--
	}
	end := start + maxLen
	if end >= len(content) {
		end = len(content)
	} else {
		for end > start && !utf8.RuneStart(content[end]) {
			end--
		}
	}

	snippet := content[start:end]
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(content) {
		snippet += "..."
	}
	return snippet
}

func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
