package extract

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Dry-U/File-tools/internal/models"
)

// FileSource walks configured directories and yields one document per
// supported file. It feeds both full rebuilds and single-file ingestion;
// embeddings are attached by the caller.
type FileSource struct {
	registry   *Registry
	roots      []string
	extensions map[string]bool
	recursive  bool
	logger     *zap.Logger
}

// SourceOption configures a FileSource.
type SourceOption func(*FileSource)

// WithSourceLogger sets the logger.
func WithSourceLogger(logger *zap.Logger) SourceOption {
	return func(s *FileSource) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewFileSource creates a source over roots. When extensions is empty, every
// extension the registry supports is accepted.
func NewFileSource(registry *Registry, roots []string, extensions []string, recursive bool, opts ...SourceOption) *FileSource {
	extSet := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		extSet[strings.ToLower(ext)] = true
	}
	s := &FileSource{
		registry:   registry,
		roots:      roots,
		extensions: extSet,
		recursive:  recursive,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Accepts reports whether path's extension is indexable by this source.
func (s *FileSource) Accepts(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if len(s.extensions) > 0 {
		return s.extensions[ext]
	}
	return s.registry.Supported(ext)
}

// Documents walks every root and yields a document per readable, supported
// file. Files that fail extraction are logged and skipped; the walk keeps
// going so one corrupt file cannot abort a rebuild.
func (s *FileSource) Documents(ctx context.Context, fn func(doc *models.Document) error) error {
	for _, root := range s.roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				s.logger.Warn("walk error, skipping", zap.String("path", path), zap.Error(err))
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() {
				if strings.HasPrefix(d.Name(), ".") && path != root {
					return filepath.SkipDir
				}
				if !s.recursive && path != root {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") || !s.Accepts(path) {
				return nil
			}
			doc, err := s.LoadDocument(path)
			if err != nil {
				s.logger.Warn("failed to load file, skipping", zap.String("path", path), zap.Error(err))
				return nil
			}
			return fn(doc)
		})
		if err != nil {
			return fmt.Errorf("walk %s: %w", root, err)
		}
	}
	return nil
}

// LoadDocument reads, extracts, and assembles the document for one file.
func (s *FileSource) LoadDocument(path string) (*models.Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory: %s", path)
	}

	content, err := s.registry.Extract(path)
	if err != nil {
		return nil, err
	}

	doc := &models.Document{
		Path:       models.NormalizePath(path),
		Content:    content,
		Keywords:   FilenameKeywords(filepath.Base(path)),
		Size:       info.Size(),
		CreatedAt:  info.ModTime(),
		ModifiedAt: info.ModTime(),
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// FilenameKeywords tokenizes a filename into search keywords: the stem split
// on separators, lower-cased, single characters dropped.
func FilenameKeywords(filename string) []string {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	tokens := strings.FieldsFunc(stem, func(r rune) bool {
		return r == '_' || r == '-' || r == '.' || r == ' '
	})
	var keywords []string
	for _, tok := range tokens {
		tok = strings.ToLower(tok)
		if len(tok) > 1 {
			keywords = append(keywords, tok)
		}
	}
	return keywords
}
