// Package keyword provides the token-based full-text index over document
// records, keyed by normalized path.
package keyword

import (
	"context"

	"github.com/Dry-U/File-tools/internal/models"
)

// Index defines keyword indexing and search operations.
type Index interface {
	// Upsert writes or overwrites the entry for doc.Path with the full field set.
	Upsert(ctx context.Context, doc *models.Document) error
	// Delete removes the entry for path. Deleting a missing path is not an error.
	Delete(ctx context.Context, path string) error
	// Search runs a relevance-scored lookup and returns up to limit hits.
	Search(ctx context.Context, query string, limit int) ([]*Result, error)
	// DocCount returns the number of indexed documents.
	DocCount() (uint64, error)
	// Reset drops all entries, leaving an empty index. Used by rebuild.
	Reset() error
	Close() error
}

// Result is a single keyword hit with the engine-native relevance score.
type Result struct {
	Path  string
	Score float64
}
