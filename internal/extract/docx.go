package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// A .docx is a zip of Office Open XML parts; body text lives in
// word/document.xml as <w:t> runs. [Content_Types].xml may relocate the main
// part, so it is consulted first.
const (
	docxDefaultBodyPart = "word/document.xml"
	ooxmlContentTypes   = "[Content_Types].xml"
	docxBodyContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
)

var bodyTextRun = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)

// The Override element carries PartName and ContentType in either order.
var docxBodyOverride = []*regexp.Regexp{
	regexp.MustCompile(`<Override[^>]+PartName="([^"]+)"[^>]+ContentType="` + regexp.QuoteMeta(docxBodyContentType) + `"`),
	regexp.MustCompile(`<Override[^>]+ContentType="` + regexp.QuoteMeta(docxBodyContentType) + `"[^>]+PartName="([^"]+)"`),
}

func readZipPart(zr *zip.Reader, name string) ([]byte, error) {
	for _, part := range zr.File {
		if part.Name != name {
			continue
		}
		rc, err := part.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(rc)
		_ = rc.Close()
		return data, err
	}
	return nil, nil
}

// docxBodyPart resolves the main document part from [Content_Types].xml,
// falling back to the conventional path when the manifest is absent or silent.
func docxBodyPart(zr *zip.Reader) string {
	manifest, err := readZipPart(zr, ooxmlContentTypes)
	if err == nil && manifest != nil {
		for _, re := range docxBodyOverride {
			if m := re.FindSubmatch(manifest); len(m) > 1 {
				return strings.TrimPrefix(string(m[1]), "/")
			}
		}
	}
	return docxDefaultBodyPart
}

// extractDOCX joins every <w:t> run with a single space, ignoring paragraph
// and run attributes entirely.
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract DOCX: not a zip: %w", err)
	}
	partName := docxBodyPart(zr)
	body, err := readZipPart(zr, partName)
	if err != nil {
		return "", fmt.Errorf("extract DOCX: read %s: %w", partName, err)
	}
	if body == nil {
		return "", fmt.Errorf("extract DOCX: %s not found", partName)
	}
	var runs []string
	for _, m := range bodyTextRun.FindAllSubmatch(body, -1) {
		if text := strings.TrimSpace(string(m[1])); text != "" {
			runs = append(runs, text)
		}
	}
	return strings.Join(runs, " "), nil
}
