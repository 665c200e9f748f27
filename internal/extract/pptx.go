package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// A .pptx is a zip of Office Open XML parts; slide text lives in
// ppt/slides/slideN.xml as <a:t> runs.
var slideTextRun = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)

func isSlidePart(name string) bool {
	return strings.HasPrefix(name, "ppt/slides/slide") && strings.HasSuffix(name, ".xml")
}

func extractPPTX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract PPTX: not a zip: %w", err)
	}
	var runs []string
	for _, part := range zr.File {
		if !isSlidePart(part.Name) {
			continue
		}
		rc, err := part.Open()
		if err != nil {
			return "", fmt.Errorf("extract PPTX: open %s: %w", part.Name, err)
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return "", fmt.Errorf("extract PPTX: read %s: %w", part.Name, err)
		}
		for _, m := range slideTextRun.FindAllSubmatch(data, -1) {
			if text := strings.TrimSpace(string(m[1])); text != "" {
				runs = append(runs, text)
			}
		}
	}
	return strings.Join(runs, " "), nil
}
