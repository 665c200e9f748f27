package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
	"strings"
)

// odContentPath is the path to the main content inside an OpenDocument zip.
const odContentPath = "content.xml"

// OpenDocument text elements, with optional attributes. Separate patterns per
// tag so opening and closing tags match (e.g. <text:p>...</text:p> only).
var (
	odTextP    = regexp.MustCompile(`<text:p[^>]*>([^<]*)</text:p>`)
	odTextSpan = regexp.MustCompile(`<text:span[^>]*>([^<]*)</text:span>`)
	odTextH    = regexp.MustCompile(`<text:h[^>]*>([^<]*)</text:h>`)
)

// extractODP extracts text from .odp bytes (OpenDocument Presentation):
// text:p, text:span, and text:h elements of content.xml.
func extractODP(content []byte) (string, error) {
	return extractOpenDocument(content, "ODP", odTextP, odTextSpan, odTextH)
}

// extractODS extracts text from .ods bytes (OpenDocument Spreadsheet):
// text:p and text:span elements of content.xml cover cell content.
func extractODS(content []byte) (string, error) {
	return extractOpenDocument(content, "ODS", odTextP, odTextSpan)
}

func extractOpenDocument(content []byte, format string, patterns ...*regexp.Regexp) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract %s: not a zip: %w", format, err)
	}
	var contentXML []byte
	for _, f := range zr.File {
		if f.Name != odContentPath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("extract %s: open %s: %w", format, f.Name, err)
		}
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			_ = rc.Close()
			return "", fmt.Errorf("extract %s: read %s: %w", format, f.Name, err)
		}
		_ = rc.Close()
		contentXML = buf.Bytes()
		break
	}
	if contentXML == nil {
		return "", fmt.Errorf("extract %s: %s not found", format, odContentPath)
	}

	s := string(contentXML)
	var b strings.Builder
	for _, pattern := range patterns {
		for _, p := range pattern.FindAllStringSubmatch(s, -1) {
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(strings.TrimSpace(p[1]))
		}
	}
	return strings.TrimSpace(b.String()), nil
}
