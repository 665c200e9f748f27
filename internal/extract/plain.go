package extract

import (
	"strings"
	"unicode/utf8"
)

// extractPlain passes text files through untouched, except that invalid
// UTF-8 sequences become U+FFFD so downstream indexing never sees bad runes.
func extractPlain(content []byte) (string, error) {
	s := string(content)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "�")
	}
	return s, nil
}
