package keyword

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/Dry-U/File-tools/internal/models"
	"github.com/Dry-U/File-tools/pkg/utils"
)

// indexedDoc is the flattened shape stored in bleve. The *_seg fields carry
// space-separated single CJK characters so the standard analyzer indexes each
// character as its own term.
type indexedDoc struct {
	Filename    string `json:"filename"`
	FilenameSeg string `json:"filename_seg"`
	Content     string `json:"content"`
	ContentSeg  string `json:"content_seg"`
	Keywords    string `json:"keywords"`
	FileType    string `json:"file_type"`
	Size        int64  `json:"size"`
	Created     string `json:"created"`
	Modified    string `json:"modified"`
}

// BleveIndex implements Index using bleve.
type BleveIndex struct {
	path  string
	index bleve.Index
}

// NewBleveIndex creates or opens a bleve index at path. An existing index is
// reused so unchanged files are not re-indexed; schema drift is detected
// separately by the store's schema version marker, which forces a rebuild.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open keyword index: %w", openErr)
		}
		return &BleveIndex{path: path, index: index}, nil
	}

	index, err := bleve.New(path, buildMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create keyword index: %w", err)
	}
	return &BleveIndex{path: path, index: index}, nil
}

func buildMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	// Standard analyzer (lowercase + tokenize, no stemming) so exact words match.
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	for _, field := range []string{"filename", "filename_seg", "content", "content_seg", "keywords"} {
		docMapping.AddFieldMappingsAt(field, text)
	}

	ft := bleve.NewTextFieldMapping()
	ft.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt("file_type", ft)

	num := bleve.NewNumericFieldMapping()
	num.Index = false
	docMapping.AddFieldMappingsAt("size", num)

	im.DefaultMapping = docMapping
	return im
}

// IndexedFields is the ordered field set of the keyword index. The store
// fingerprints it into the schema version marker; changing it forces a rebuild.
func IndexedFields() []string {
	return []string{
		"filename:text",
		"filename_seg:text",
		"content:text",
		"content_seg:text",
		"keywords:text",
		"file_type:keyword",
		"size:number",
		"created:datetime",
		"modified:datetime",
	}
}

// filenameTokens maps separators the standard analyzer keeps word-internal
// (underscores, and the dot before the extension) to spaces, so each piece of
// "budget_report.pdf" is its own term and "report" matches.
var filenameTokens = strings.NewReplacer("_", " ", ".", " ")

// Upsert writes the full field set for doc.Path, replacing any previous entry.
func (b *BleveIndex) Upsert(ctx context.Context, doc *models.Document) error {
	doc.EnsureSegments()
	entry := indexedDoc{
		Filename:    filenameTokens.Replace(doc.Filename),
		FilenameSeg: doc.FilenameSeg,
		Content:     doc.Content,
		ContentSeg:  doc.ContentSeg,
		Keywords:    strings.Join(doc.Keywords, " "),
		FileType:    doc.FileType,
		Size:        doc.Size,
		Created:     doc.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		Modified:    doc.ModifiedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	return b.index.Index(doc.Path, entry)
}

// Delete removes the entry for path.
func (b *BleveIndex) Delete(ctx context.Context, path string) error {
	return b.index.Delete(path)
}

// Search runs a disjunction of match queries over filename, content, and
// keywords. Queries containing Han characters additionally match the
// character-segmented fields with a segmented form of the query, so a
// two-character query like "预算" retrieves documents containing either character.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int) ([]*Result, error) {
	if limit <= 0 {
		return nil, nil
	}
	queries := make([]blevequery.Query, 0, 5)
	for _, field := range []string{"filename", "content", "keywords"} {
		mq := bleve.NewMatchQuery(query)
		mq.SetField(field)
		queries = append(queries, mq)
	}
	if utils.HasCJK(query) {
		seg := utils.SegmentCJK(query)
		for _, field := range []string{"filename_seg", "content_seg"} {
			mq := bleve.NewMatchQuery(seg)
			mq.SetField(field)
			queries = append(queries, mq)
		}
	}

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery(queries...))
	req.Size = limit
	res, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	out := make([]*Result, len(res.Hits))
	for i, hit := range res.Hits {
		out[i] = &Result{Path: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// DocCount returns the total number of indexed documents.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Reset closes the index, removes it from disk, and recreates it empty.
func (b *BleveIndex) Reset() error {
	if err := b.index.Close(); err != nil {
		return fmt.Errorf("close keyword index: %w", err)
	}
	if err := os.RemoveAll(b.path); err != nil {
		return fmt.Errorf("remove keyword index: %w", err)
	}
	index, err := bleve.New(b.path, buildMapping())
	if err != nil {
		return fmt.Errorf("recreate keyword index: %w", err)
	}
	b.index = index
	return nil
}

// Close closes the underlying index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
