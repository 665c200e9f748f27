package models

import (
	"testing"
	"time"
)

func TestSearchQueryValidate(t *testing.T) {
	q := &SearchQuery{Query: "budget"}
	if err := q.Validate(10, 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Limit != 10 {
		t.Errorf("expected default limit 10, got %d", q.Limit)
	}

	q = &SearchQuery{Query: "budget", Limit: 500}
	if err := q.Validate(10, 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Limit != 100 {
		t.Errorf("expected limit capped at 100, got %d", q.Limit)
	}

	q = &SearchQuery{Query: "   "}
	if err := q.Validate(10, 100); err == nil {
		t.Error("expected error for empty query")
	}

	q = &SearchQuery{Query: "x", TextWeight: -1}
	if err := q.Validate(10, 100); err == nil {
		t.Error("expected error for negative weight")
	}
}

func TestFiltersMatch(t *testing.T) {
	now := time.Now()
	doc := &Document{
		Path:       "/docs/report.pdf",
		FileType:   ".pdf",
		Size:       2048,
		ModifiedAt: now,
	}

	tests := []struct {
		name    string
		filters *SearchFilters
		want    bool
	}{
		{"nil filters", nil, true},
		{"matching type", &SearchFilters{FileTypes: []string{"pdf"}}, true},
		{"matching type with dot", &SearchFilters{FileTypes: []string{".pdf"}}, true},
		{"wrong type", &SearchFilters{FileTypes: []string{".txt"}}, false},
		{"size in range", &SearchFilters{SizeMin: 1024, SizeMax: 4096}, true},
		{"too small", &SearchFilters{SizeMin: 4096}, false},
		{"too large", &SearchFilters{SizeMax: 1024}, false},
		{"modified after ok", &SearchFilters{ModifiedAfter: now.Add(-time.Hour)}, true},
		{"modified before fails", &SearchFilters{ModifiedBefore: now.Add(-time.Hour)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filters.Match(doc); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}
