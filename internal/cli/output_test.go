package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/Dry-U/File-tools/internal/models"
)

func sampleResponse() *models.SearchResponse {
	return &models.SearchResponse{
		Query:     "budget",
		Total:     2,
		QueryTime: 7,
		Results: []*models.SearchResult{
			{
				Path:       "/docs/budget_report.pdf",
				Filename:   "budget_report.pdf",
				Score:      0.92,
				TextScore:  0.88,
				FileType:   ".pdf",
				Size:       1024,
				ModifiedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
				Snippet:    "annual budget execution summary",
				Source:     "hybrid",
			},
			{
				Path:     "/docs/notes.txt",
				Filename: "notes.txt",
				Score:    0.31,
				FileType: ".txt",
				Source:   "text",
			},
		},
	}
}

func TestWriteSearchResultsText(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Found 2 results", "/docs/budget_report.pdf", "0.9200", "hybrid"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteSearchResultsTextDegraded(t *testing.T) {
	resp := sampleResponse()
	resp.Degraded = true
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, resp, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "vector search unavailable") {
		t.Error("degraded notice missing")
	}
}

func TestWriteSearchResultsCompact(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputCompact); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	if !strings.HasSuffix(lines[0], "/docs/budget_report.pdf") {
		t.Errorf("unexpected first line: %q", lines[0])
	}
}

func TestWriteSearchResultsJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, sampleResponse(), OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.SearchResponse
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Total != 2 || len(decoded.Results) != 2 {
		t.Errorf("roundtrip mismatch: %+v", decoded)
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{"": OutputText, "text": OutputText, "compact": OutputCompact, "json": OutputJSON} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := Truncate("abcdefghij", 5); got != "abcde..." {
		t.Errorf("got %q", got)
	}
	// Rune-safe for CJK.
	if got := Truncate("年度预算执行", 3); got != "年度预..." {
		t.Errorf("got %q", got)
	}
}
