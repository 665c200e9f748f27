// Package vector provides the approximate-nearest-neighbor index over document
// embeddings and the id map that ties vector ids to document paths.
package vector

import "context"

// Index defines vector storage and similarity search over int64 ids.
// Ids are assigned by the IDMap and never reused while their document is live.
type Index interface {
	Add(ctx context.Context, ids []int64, vectors [][]float32) error
	// Search returns up to k hits by descending similarity. Tombstone filtering
	// happens above this layer; the index returns raw candidates.
	Search(ctx context.Context, query []float32, k int) ([]*Result, error)
	// Save persists the index atomically (temp file + rename).
	Save(path string) error
	// Load replaces in-memory contents from path; a missing file is not an error.
	Load(path string) error
	Size() int
	// Reset drops all vectors. Used by rebuild.
	Reset()
	Close() error
}

// Result is a single vector search hit.
type Result struct {
	ID    int64
	Score float64 // inner product; equals cosine similarity for normalized vectors
}
