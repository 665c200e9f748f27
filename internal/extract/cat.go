package extract

import (
	"fmt"

	"github.com/lu4p/cat"
)

// extractWithCat delegates to lu4p/cat for formats it handles better than the
// built-in OOXML parsers (.odt, .rtf). cat works on file paths, so this
// handler cannot run on raw bytes alone.
func extractWithCat(path string, _ []byte) (string, error) {
	if path == "" {
		return "", fmt.Errorf("extractor requires a file path")
	}
	text, err := cat.File(path)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", path, err)
	}
	return text, nil
}
