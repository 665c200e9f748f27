package search

import "strings"

// fileTypeAliases maps query tokens to catalog file types. A query like
// "budget pdf" filters to PDFs and searches for "budget".
var fileTypeAliases = map[string][]string{
	"pdf":          {"pdf"},
	"word":         {"docx", "odt", "rtf"},
	"docx":         {"docx"},
	"excel":        {"xlsx", "ods"},
	"xlsx":         {"xlsx"},
	"spreadsheet":  {"xlsx", "ods", "csv"},
	"ppt":          {"pptx", "odp"},
	"pptx":         {"pptx"},
	"presentation": {"pptx", "odp"},
	"markdown":     {"md"},
	"text":         {"txt", "md", "rst", "log"},
	"txt":          {"txt"},
}

// DetectFileTypes scans the query for file-type tokens and returns the query
// with those tokens removed plus the implied type filter. The tokens only act
// as a filter when other search terms remain; a bare "pdf" stays a search term.
func DetectFileTypes(query string) (string, []string) {
	tokens := strings.Fields(query)
	if len(tokens) < 2 {
		return query, nil
	}

	var kept []string
	var types []string
	seen := make(map[string]bool)
	for _, tok := range tokens {
		if fts, ok := fileTypeAliases[strings.ToLower(tok)]; ok {
			for _, ft := range fts {
				if !seen[ft] {
					seen[ft] = true
					types = append(types, ft)
				}
			}
			continue
		}
		kept = append(kept, tok)
	}
	if len(types) == 0 || len(kept) == 0 {
		return query, nil
	}
	return strings.Join(kept, " "), types
}
