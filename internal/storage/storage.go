// Package storage defines the persistence interface for the document catalog.
package storage

import (
	"context"
	"errors"

	"github.com/Dry-U/File-tools/internal/models"
)

// ErrNotFound is returned when a catalog lookup finds no row for the path.
var ErrNotFound = errors.New("document not found")

// Catalog persists the authoritative document records keyed by normalized
// path. The keyword and vector indexes are derived from it; a rebuild streams
// every catalog row back through the indexing pipeline.
type Catalog interface {
	// Upsert inserts or fully replaces the record for doc.Path.
	Upsert(ctx context.Context, doc *models.Document) error
	// Get returns the record for path, or ErrNotFound.
	Get(ctx context.Context, path string) (*models.Document, error)
	// Delete removes the record for path. Deleting a missing path is not an error.
	Delete(ctx context.Context, path string) error
	// List returns records ordered by path with offset and limit.
	List(ctx context.Context, offset, limit int) ([]*models.Document, error)
	// Scan streams every record to fn in path order; fn returning an error stops the scan.
	Scan(ctx context.Context, fn func(doc *models.Document) error) error
	// Count returns the total number of records.
	Count(ctx context.Context) (int64, error)

	Close() error
}
