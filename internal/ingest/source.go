package ingest

import (
	"context"

	"go.uber.org/zap"

	"github.com/Dry-U/File-tools/internal/embedding"
	"github.com/Dry-U/File-tools/internal/extract"
	"github.com/Dry-U/File-tools/internal/models"
)

// EmbeddingSource streams documents from the filesystem with embeddings
// attached, for full index rebuilds. A nil embedder, or a per-document
// embedding failure, yields the document without a vector.
type EmbeddingSource struct {
	source   *extract.FileSource
	embedder embedding.Embedder
	logger   *zap.Logger
}

// NewEmbeddingSource wraps source. embedder and logger may be nil.
func NewEmbeddingSource(source *extract.FileSource, embedder embedding.Embedder, logger *zap.Logger) *EmbeddingSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmbeddingSource{source: source, embedder: embedder, logger: logger}
}

// Documents implements store.Source.
func (s *EmbeddingSource) Documents(ctx context.Context, fn func(*models.Document) error) error {
	return s.source.Documents(ctx, func(doc *models.Document) error {
		if s.embedder != nil && doc.Content != "" {
			emb, err := s.embedder.Embed(ctx, doc.Content)
			if err != nil {
				s.logger.Warn("embedding failed during rebuild, indexing without vector",
					zap.String("path", doc.Path), zap.Error(err))
			} else {
				doc.Embedding = emb
			}
		}
		return fn(doc)
	})
}
