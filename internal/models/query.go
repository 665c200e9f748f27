package models

import (
	"fmt"
	"strings"
	"time"
)

// SearchQuery is a search request with optional filters and per-request weights.
type SearchQuery struct {
	Query        string         `json:"query"`
	Limit        int            `json:"limit,omitempty"`
	TextWeight   float64        `json:"text_weight,omitempty"`
	VectorWeight float64        `json:"vector_weight,omitempty"`
	MinScore     float64        `json:"min_score,omitempty"`
	Filters      *SearchFilters `json:"filters,omitempty"`
}

// SearchFilters restrict results by file metadata. Zero values mean "no bound".
type SearchFilters struct {
	FileTypes      []string  `json:"file_types,omitempty"`
	SizeMin        int64     `json:"size_min,omitempty"`
	SizeMax        int64     `json:"size_max,omitempty"`
	ModifiedAfter  time.Time `json:"modified_after,omitempty"`
	ModifiedBefore time.Time `json:"modified_before,omitempty"`
}

// Validate ensures the query is non-empty and applies limit/weight defaults.
// defaultLimit and maxLimit come from configuration.
func (q *SearchQuery) Validate(defaultLimit, maxLimit int) error {
	if strings.TrimSpace(q.Query) == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if maxLimit > 0 && q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	if q.TextWeight < 0 || q.VectorWeight < 0 {
		return fmt.Errorf("weights must be non-negative")
	}
	return nil
}

// Match reports whether doc passes every filter condition.
func (f *SearchFilters) Match(doc *Document) bool {
	if f == nil {
		return true
	}
	if len(f.FileTypes) > 0 {
		ok := false
		for _, ft := range f.FileTypes {
			if normalizeExt(ft) == normalizeExt(doc.FileType) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.SizeMin > 0 && doc.Size < f.SizeMin {
		return false
	}
	if f.SizeMax > 0 && doc.Size > f.SizeMax {
		return false
	}
	if !f.ModifiedAfter.IsZero() && doc.ModifiedAt.Before(f.ModifiedAfter) {
		return false
	}
	if !f.ModifiedBefore.IsZero() && doc.ModifiedAt.After(f.ModifiedBefore) {
		return false
	}
	return true
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
