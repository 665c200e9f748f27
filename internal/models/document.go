// Package models defines core data structures for documents, change events,
// queries, and search results.
package models

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Dry-U/File-tools/pkg/utils"
)

// Document is a parsed file record, keyed by its normalized path. At most one
// live record exists per path across the catalog and both indexes.
type Document struct {
	Path        string    `json:"path" db:"path"`
	Filename    string    `json:"filename" db:"filename"`
	Content     string    `json:"content" db:"content"`
	ContentSeg  string    `json:"-" db:"content_seg"`
	FilenameSeg string    `json:"-" db:"filename_seg"`
	Keywords    []string  `json:"keywords,omitempty" db:"keywords"`
	FileType    string    `json:"file_type" db:"file_type"`
	Size        int64     `json:"size" db:"size"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	ModifiedAt  time.Time `json:"modified_at" db:"modified_at"`
	// Embedding is the precomputed vector for the document content, if any.
	// Not persisted in the catalog; it lives in the vector index.
	Embedding []float32 `json:"-" db:"-"`
	// VectorID is set once the document has been inserted into the vector index.
	VectorID *int64 `json:"vector_id,omitempty" db:"vector_id"`
}

// NormalizePath cleans p into the canonical form used as the document key.
func NormalizePath(p string) string {
	return filepath.Clean(p)
}

// Validate checks the record is well formed and normalizes the path key.
// Filename and file type are derived from the path when unset.
func (d *Document) Validate() error {
	if strings.TrimSpace(d.Path) == "" {
		return fmt.Errorf("document has no path")
	}
	d.Path = NormalizePath(d.Path)
	if d.Filename == "" {
		d.Filename = filepath.Base(d.Path)
	}
	if d.FileType == "" {
		// Dot-less, matching the query-side file-type filter ("pdf", not ".pdf").
		d.FileType = strings.TrimPrefix(strings.ToLower(filepath.Ext(d.Path)), ".")
	}
	return nil
}

// EnsureSegments fills the character-segmented variants of content and
// filename when they contain Han characters. Idempotent.
func (d *Document) EnsureSegments() {
	if d.ContentSeg == "" && utils.HasCJK(d.Content) {
		d.ContentSeg = utils.SegmentCJK(d.Content)
	}
	if d.FilenameSeg == "" && utils.HasCJK(d.Filename) {
		d.FilenameSeg = utils.SegmentCJK(d.Filename)
	}
}
