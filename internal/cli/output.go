// Package cli formats search results and status for the command line client.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/Dry-U/File-tools/internal/models"
)

// OutputFormat selects how results are rendered.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact is one result per line, for piping into other tools.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat maps a flag value to an OutputFormat.
func ParseFormat(s string) (OutputFormat, error) {
	switch s {
	case "", "text":
		return OutputText, nil
	case "compact":
		return OutputCompact, nil
	case "json":
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
	}
}

// WriteSearchResults writes the response to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	case OutputCompact:
		for _, result := range response.Results {
			fmt.Fprintf(w, "%.4f\t%s\n", result.Score, result.Path)
		}
		return nil
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	fmt.Fprintf(w, "\nFound %d results in %dms for %q\n",
		response.Total, response.QueryTime, response.Query)
	if response.Degraded {
		fmt.Fprintln(w, "(vector search unavailable; keyword results only)")
	}
	fmt.Fprintln(w)
	for i, result := range response.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "%d. %s\n", i+1, result.Path)
		fmt.Fprintf(w, "   Score: %.4f (text: %.4f, vector: %.4f) [%s]\n",
			result.Score, result.TextScore, result.VectorScore, result.Source)
		fmt.Fprintf(w, "   Type: %s | Size: %d bytes | Modified: %s\n",
			result.FileType, result.Size, result.ModifiedAt.Format("2006-01-02 15:04"))
		if result.Snippet != "" {
			fmt.Fprintf(w, "\n   %s\n", Truncate(result.Snippet, 200))
		}
		fmt.Fprintln(w)
	}
}

// Truncate shortens s to at most maxLen runes and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
