// Package store couples the document catalog, the keyword index, the vector
// index, and the id map into one unit with shared lifecycle and rebuild.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Dry-U/File-tools/internal/keyword"
	"github.com/Dry-U/File-tools/internal/models"
	"github.com/Dry-U/File-tools/internal/storage"
	"github.com/Dry-U/File-tools/internal/vector"
)

// State is the store lifecycle state.
type State int32

const (
	// StateUninitialized means Open has not completed; all operations fail.
	StateUninitialized State = iota
	// StateReady means reads and writes are served.
	StateReady
	// StateRebuilding means a rebuild is in flight; reads and writes are rejected
	// with ErrRebuilding until it completes.
	StateRebuilding
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateRebuilding:
		return "rebuilding"
	default:
		return "uninitialized"
	}
}

var (
	// ErrNotReady is returned before Open completes.
	ErrNotReady = errors.New("store not ready")
	// ErrRebuilding is returned while a rebuild is in flight. Callers should
	// treat it as transient and retry after the rebuild completes.
	ErrRebuilding = errors.New("store rebuilding")
	// ErrSchemaStale is returned when the persisted indexes were written with a
	// different field set and must be rebuilt before queries are served.
	ErrSchemaStale = errors.New("index schema stale, rebuild required")
)

// Source streams the documents a rebuild re-indexes. Documents carry their
// embedding already computed; the store never talks to the embedder itself.
type Source interface {
	Documents(ctx context.Context, fn func(doc *models.Document) error) error
}

// VectorHit is a vector search result resolved to a document path.
type VectorHit struct {
	Path  string
	Score float64
}

// Options configures paths and dimensions for a Store.
type Options struct {
	VectorIndexPath  string
	IDMapPath        string
	SchemaMarkerPath string
	Dimensions       int
}

// Stats is a point-in-time snapshot of store contents.
type Stats struct {
	State       string `json:"state"`
	Documents   int64  `json:"documents"`
	KeywordDocs uint64 `json:"keyword_docs"`
	Vectors     int    `json:"vectors"`
	LiveVectors int    `json:"live_vectors"`
	Tombstones  uint64 `json:"tombstones"`
	Rebuilds    int64  `json:"rebuilds"`
}

// RebuildProgress counts documents processed by the rebuild in flight.
type RebuildProgress struct {
	Indexed int64 `json:"indexed"`
	Failed  int64 `json:"failed"`
}

// Store owns the three coupled stores plus the catalog. All writes go through
// it so the keyword index, vector index, and id map never drift apart.
type Store struct {
	catalog storage.Catalog
	keyword keyword.Index
	vectors vector.Index
	ids     *vector.IDMap
	opts    Options
	logger  *zap.Logger

	state    atomic.Int32
	closed   atomic.Bool
	rebuilds atomic.Int64
	progress struct {
		indexed atomic.Int64
		failed  atomic.Int64
	}
	writeMu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Store over the given components. Call Open before use.
func New(catalog storage.Catalog, kw keyword.Index, vec vector.Index, ids *vector.IDMap, opts Options, options ...Option) *Store {
	s := &Store{
		catalog: catalog,
		keyword: kw,
		vectors: vec,
		ids:     ids,
		opts:    opts,
		logger:  zap.NewNop(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Open loads persisted state and validates the schema marker. When the marker
// does not match the current fingerprint, or the persisted vector state is
// corrupt, Open returns ErrSchemaStale and the store stays uninitialized until
// Rebuild is called. Corruption never propagates as a fatal error.
func (s *Store) Open(ctx context.Context) error {
	if err := s.vectors.Load(s.opts.VectorIndexPath); err != nil {
		s.logger.Warn("vector index unreadable, rebuild required", zap.Error(err))
		s.vectors.Reset()
		s.ids.Reset()
		return ErrSchemaStale
	}
	if err := s.ids.Load(s.opts.IDMapPath); err != nil {
		s.logger.Warn("id map unreadable, rebuild required", zap.Error(err))
		s.vectors.Reset()
		s.ids.Reset()
		return ErrSchemaStale
	}

	marker, err := readSchemaMarker(s.opts.SchemaMarkerPath)
	if err != nil {
		return err
	}
	current := s.fingerprint()
	if marker == "" {
		// Fresh store: stamp the marker and start empty.
		count, err := s.catalog.Count(ctx)
		if err != nil {
			return fmt.Errorf("count catalog: %w", err)
		}
		if count > 0 {
			// Catalog has data but indexes were never stamped: treat as stale.
			return ErrSchemaStale
		}
		if err := writeSchemaMarker(s.opts.SchemaMarkerPath, current); err != nil {
			return err
		}
	} else if marker != current {
		s.logger.Warn("schema fingerprint changed, rebuild required",
			zap.String("stored", marker), zap.String("current", current))
		return ErrSchemaStale
	}

	s.state.Store(int32(StateReady))
	return nil
}

func (s *Store) fingerprint() string {
	return SchemaFingerprint(keyword.IndexedFields(), s.opts.Dimensions)
}

// State returns the current lifecycle state.
func (s *Store) State() State {
	return State(s.state.Load())
}

func (s *Store) guard() error {
	switch s.State() {
	case StateReady:
		return nil
	case StateRebuilding:
		return ErrRebuilding
	default:
		return ErrNotReady
	}
}

// Upsert writes doc to all stores. Ordering is keyword first, then vector,
// then catalog last, with rollback on each failure, so a partial write never
// leaves a document visible in one index but absent from the catalog. When the
// path was already indexed, a failed re-index restores the previous keyword
// entry instead of erasing it.
func (s *Store) Upsert(ctx context.Context, doc *models.Document) error {
	if err := s.guard(); err != nil {
		return err
	}
	if err := doc.Validate(); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	prior, _ := s.catalog.Get(ctx, doc.Path)

	if err := s.keyword.Upsert(ctx, doc); err != nil {
		return fmt.Errorf("keyword upsert: %w", err)
	}

	if len(doc.Embedding) > 0 {
		id, _, _ := s.ids.Assign(doc.Path)
		if err := s.vectors.Add(ctx, []int64{id}, [][]float32{doc.Embedding}); err != nil {
			s.ids.Tombstone(doc.Path)
			s.rollbackKeyword(ctx, doc.Path, prior)
			return fmt.Errorf("vector add: %w", err)
		}
		doc.VectorID = &id
	} else {
		// No embedding this round: retire any stale vector for the old content.
		s.ids.Tombstone(doc.Path)
		doc.VectorID = nil
	}

	if err := s.catalog.Upsert(ctx, doc); err != nil {
		s.ids.Tombstone(doc.Path)
		s.rollbackKeyword(ctx, doc.Path, prior)
		return fmt.Errorf("catalog upsert: %w", err)
	}
	return nil
}

// rollbackKeyword undoes a keyword upsert: the previous entry comes back when
// one existed, otherwise the new entry is removed.
func (s *Store) rollbackKeyword(ctx context.Context, path string, prior *models.Document) {
	if prior != nil {
		_ = s.keyword.Upsert(ctx, prior)
		return
	}
	_ = s.keyword.Delete(ctx, path)
}

// Delete removes path from all stores. Deleting an unknown path is a no-op.
// The vector stays physically in the index, masked by its tombstone, until the
// next rebuild.
func (s *Store) Delete(ctx context.Context, path string) error {
	if err := s.guard(); err != nil {
		return err
	}
	path = models.NormalizePath(path)
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.keyword.Delete(ctx, path); err != nil {
		return fmt.Errorf("keyword delete: %w", err)
	}
	s.ids.Tombstone(path)
	if err := s.catalog.Delete(ctx, path); err != nil {
		return fmt.Errorf("catalog delete: %w", err)
	}
	return nil
}

// SearchKeyword runs a keyword query.
func (s *Store) SearchKeyword(ctx context.Context, query string, limit int) ([]*keyword.Result, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	return s.keyword.Search(ctx, query, limit)
}

// SearchVector runs a similarity query and resolves hits to paths, skipping
// tombstoned ids. It may return fewer than k hits when tombstones crowd the
// top of the candidate list; callers oversample to compensate.
func (s *Store) SearchVector(ctx context.Context, query []float32, k int) ([]*VectorHit, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	raw, err := s.vectors.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	hits := make([]*VectorHit, 0, len(raw))
	for _, r := range raw {
		if s.ids.IsTombstoned(r.ID) {
			continue
		}
		path, ok := s.ids.PathFor(r.ID)
		if !ok {
			continue
		}
		hits = append(hits, &VectorHit{Path: path, Score: r.Score})
	}
	return hits, nil
}

// GetDocument returns the catalog record for path.
func (s *Store) GetDocument(ctx context.Context, path string) (*models.Document, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	return s.catalog.Get(ctx, models.NormalizePath(path))
}

// HasDocument reports whether path is cataloged with the given modification
// time and size, letting ingest skip files that have not changed.
func (s *Store) HasDocument(ctx context.Context, doc *models.Document) bool {
	existing, err := s.catalog.Get(ctx, doc.Path)
	if err != nil {
		return false
	}
	return existing.Size == doc.Size && existing.ModifiedAt.Equal(doc.ModifiedAt)
}

// Persist flushes the vector index, id map, and schema marker to disk. The
// keyword index and catalog persist their own writes.
func (s *Store) Persist() error {
	if err := s.vectors.Save(s.opts.VectorIndexPath); err != nil {
		return fmt.Errorf("save vector index: %w", err)
	}
	if err := s.ids.Save(s.opts.IDMapPath); err != nil {
		return fmt.Errorf("save id map: %w", err)
	}
	return writeSchemaMarker(s.opts.SchemaMarkerPath, s.fingerprint())
}

// Rebuild drops all three index structures and re-indexes every document the
// source yields. Tombstoned vectors are compacted away because the vector
// index and id map restart empty. Documents that fail to index are counted
// and skipped; the rebuild itself keeps going.
func (s *Store) Rebuild(ctx context.Context, source Source) error {
	if !s.state.CompareAndSwap(int32(StateReady), int32(StateRebuilding)) &&
		!s.state.CompareAndSwap(int32(StateUninitialized), int32(StateRebuilding)) {
		return ErrRebuilding
	}
	defer s.state.Store(int32(StateReady))
	s.progress.indexed.Store(0)
	s.progress.failed.Store(0)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.keyword.Reset(); err != nil {
		return fmt.Errorf("reset keyword index: %w", err)
	}
	s.vectors.Reset()
	s.ids.Reset()

	err := source.Documents(ctx, func(doc *models.Document) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.indexOne(ctx, doc); err != nil {
			s.progress.failed.Add(1)
			s.logger.Warn("rebuild: skipping document", zap.String("path", doc.Path), zap.Error(err))
			return nil
		}
		s.progress.indexed.Add(1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("rebuild source: %w", err)
	}

	if err := s.Persist(); err != nil {
		return err
	}
	s.rebuilds.Add(1)
	s.logger.Info("rebuild complete",
		zap.Int64("indexed", s.progress.indexed.Load()),
		zap.Int64("failed", s.progress.failed.Load()))
	return nil
}

// indexOne is Upsert without the state guard, for use during rebuild.
func (s *Store) indexOne(ctx context.Context, doc *models.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	if err := s.keyword.Upsert(ctx, doc); err != nil {
		return fmt.Errorf("keyword upsert: %w", err)
	}
	if len(doc.Embedding) > 0 {
		id, _, _ := s.ids.Assign(doc.Path)
		if err := s.vectors.Add(ctx, []int64{id}, [][]float32{doc.Embedding}); err != nil {
			s.ids.Tombstone(doc.Path)
			_ = s.keyword.Delete(ctx, doc.Path)
			return fmt.Errorf("vector add: %w", err)
		}
		doc.VectorID = &id
	}
	if err := s.catalog.Upsert(ctx, doc); err != nil {
		s.ids.Tombstone(doc.Path)
		_ = s.keyword.Delete(ctx, doc.Path)
		return fmt.Errorf("catalog upsert: %w", err)
	}
	return nil
}

// Progress returns counters for the rebuild in flight (or the last one).
func (s *Store) Progress() RebuildProgress {
	return RebuildProgress{
		Indexed: s.progress.indexed.Load(),
		Failed:  s.progress.failed.Load(),
	}
}

// Stats returns a snapshot of store contents.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	docs, err := s.catalog.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count catalog: %w", err)
	}
	kwDocs, err := s.keyword.DocCount()
	if err != nil {
		return nil, fmt.Errorf("count keyword docs: %w", err)
	}
	return &Stats{
		State:       s.State().String(),
		Documents:   docs,
		KeywordDocs: kwDocs,
		Vectors:     s.vectors.Size(),
		LiveVectors: s.ids.LiveCount(),
		Tombstones:  s.ids.TombstoneCount(),
		Rebuilds:    s.rebuilds.Load(),
	}, nil
}

// Close persists and releases all components. Safe to call more than once;
// only the first call does anything.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	var firstErr error
	if s.State() == StateReady {
		if err := s.Persist(); err != nil {
			firstErr = err
		}
	}
	if err := s.keyword.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.vectors.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.catalog.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
