package models

import "time"

// SearchResult is a single fused hit.
type SearchResult struct {
	Path        string    `json:"path"`
	Filename    string    `json:"filename"`
	Score       float64   `json:"score"`
	TextScore   float64   `json:"text_score"`
	VectorScore float64   `json:"vector_score"`
	Snippet     string    `json:"snippet,omitempty"`
	FileType    string    `json:"file_type"`
	Size        int64     `json:"size"`
	ModifiedAt  time.Time `json:"modified_at"`
	// Source is "text", "vector", or "hybrid" depending on which branches hit.
	Source string `json:"source"`
}

// SearchResponse is the ordered result list for one query.
type SearchResponse struct {
	Results   []*SearchResult `json:"results"`
	Total     int             `json:"total"`
	QueryTime int64           `json:"query_time_ms"`
	Query     string          `json:"query"`
	// Degraded is true when the vector branch was unavailable and the engine
	// served keyword-only results for this session.
	Degraded bool `json:"degraded,omitempty"`
}
