package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Dry-U/File-tools/internal/keyword"
	"github.com/Dry-U/File-tools/internal/models"
	"github.com/Dry-U/File-tools/internal/storage"
	"github.com/Dry-U/File-tools/internal/vector"
)

const testDims = 4

func newComponents(t *testing.T, dir string) *Store {
	t.Helper()
	cat, err := storage.NewSQLiteCatalog(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	kw, err := keyword.NewBleveIndex(filepath.Join(dir, "keyword"))
	if err != nil {
		t.Fatal(err)
	}
	vec, err := vector.NewFlatIndex(testDims)
	if err != nil {
		t.Fatal(err)
	}
	s := New(cat, kw, vec, vector.NewIDMap(), Options{
		VectorIndexPath:  filepath.Join(dir, "vectors.bin"),
		IDMapPath:        filepath.Join(dir, "idmap.json"),
		SchemaMarkerPath: filepath.Join(dir, "schema.marker"),
		Dimensions:       testDims,
	})
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newReadyStore(t *testing.T) *Store {
	t.Helper()
	s := newComponents(t, t.TempDir())
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func storeDoc(path, content string, emb []float32) *models.Document {
	return &models.Document{
		Path:       path,
		Content:    content,
		Size:       int64(len(content)),
		CreatedAt:  time.Now(),
		ModifiedAt: time.Now(),
		Embedding:  emb,
	}
}

func TestStoreOpenFresh(t *testing.T) {
	s := newReadyStore(t)
	if s.State() != StateReady {
		t.Errorf("expected ready, got %s", s.State())
	}
}

func TestStoreGuardsBeforeOpen(t *testing.T) {
	s := newComponents(t, t.TempDir())
	err := s.Upsert(context.Background(), storeDoc("/docs/a.txt", "alpha", nil))
	if !errors.Is(err, ErrNotReady) {
		t.Errorf("expected ErrNotReady, got %v", err)
	}
	if _, err := s.SearchKeyword(context.Background(), "alpha", 10); !errors.Is(err, ErrNotReady) {
		t.Errorf("expected ErrNotReady, got %v", err)
	}
}

func TestStoreUpsertAndSearch(t *testing.T) {
	s := newReadyStore(t)
	ctx := context.Background()

	doc := storeDoc("/docs/a.txt", "alpha document content", []float32{1, 0, 0, 0})
	if err := s.Upsert(ctx, doc); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if doc.VectorID == nil {
		t.Fatal("upsert should assign a vector id")
	}

	kwHits, err := s.SearchKeyword(ctx, "alpha", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(kwHits) != 1 || kwHits[0].Path != "/docs/a.txt" {
		t.Errorf("keyword hits: %+v", kwHits)
	}

	vecHits, err := s.SearchVector(ctx, []float32{1, 0, 0, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(vecHits) != 1 || vecHits[0].Path != "/docs/a.txt" {
		t.Errorf("vector hits: %+v", vecHits)
	}

	got, err := s.GetDocument(ctx, "/docs/a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if got.Content != doc.Content {
		t.Errorf("catalog content mismatch: %q", got.Content)
	}
}

func TestStoreUpsertReplacesVector(t *testing.T) {
	s := newReadyStore(t)
	ctx := context.Background()

	first := storeDoc("/docs/a.txt", "v1", []float32{1, 0, 0, 0})
	_ = s.Upsert(ctx, first)
	second := storeDoc("/docs/a.txt", "v2", []float32{0, 1, 0, 0})
	if err := s.Upsert(ctx, second); err != nil {
		t.Fatal(err)
	}

	// Old vector must be masked even though it still sits in the index.
	hits, err := s.SearchVector(ctx, []float32{1, 0, 0, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, h := range hits {
		if h.Path == "/docs/a.txt" && h.Score > 0.9 {
			t.Errorf("stale vector should be tombstoned, got %+v", h)
		}
	}
	stats, _ := s.Stats(ctx)
	if stats.Tombstones != 1 || stats.LiveVectors != 1 || stats.Vectors != 2 {
		t.Errorf("stats after replace: %+v", stats)
	}
}

func TestStoreDeleteFinality(t *testing.T) {
	s := newReadyStore(t)
	ctx := context.Background()
	_ = s.Upsert(ctx, storeDoc("/docs/a.txt", "alpha content", []float32{1, 0, 0, 0}))

	if err := s.Delete(ctx, "/docs/a.txt"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	kwHits, _ := s.SearchKeyword(ctx, "alpha", 10)
	if len(kwHits) != 0 {
		t.Errorf("deleted doc in keyword results: %+v", kwHits)
	}
	vecHits, _ := s.SearchVector(ctx, []float32{1, 0, 0, 0}, 10)
	if len(vecHits) != 0 {
		t.Errorf("deleted doc in vector results: %+v", vecHits)
	}
	if _, err := s.GetDocument(ctx, "/docs/a.txt"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	// Deleting again is a no-op.
	if err := s.Delete(ctx, "/docs/a.txt"); err != nil {
		t.Errorf("repeat delete: %v", err)
	}
}

func TestStoreUpsertWithoutEmbedding(t *testing.T) {
	s := newReadyStore(t)
	ctx := context.Background()
	_ = s.Upsert(ctx, storeDoc("/docs/a.txt", "v1", []float32{1, 0, 0, 0}))

	// Re-index without an embedding: old vector retires, keyword entry updates.
	if err := s.Upsert(ctx, storeDoc("/docs/a.txt", "v2 fresh words", nil)); err != nil {
		t.Fatal(err)
	}
	vecHits, _ := s.SearchVector(ctx, []float32{1, 0, 0, 0}, 10)
	if len(vecHits) != 0 {
		t.Errorf("stale vector should be retired: %+v", vecHits)
	}
	kwHits, _ := s.SearchKeyword(ctx, "fresh", 10)
	if len(kwHits) != 1 {
		t.Errorf("keyword entry should be current: %+v", kwHits)
	}
}

type sliceSource struct {
	docs []*models.Document
}

func (s *sliceSource) Documents(ctx context.Context, fn func(doc *models.Document) error) error {
	for _, d := range s.docs {
		if err := fn(d); err != nil {
			return err
		}
	}
	return nil
}

func TestStoreRebuildCompactsTombstones(t *testing.T) {
	s := newReadyStore(t)
	ctx := context.Background()
	_ = s.Upsert(ctx, storeDoc("/docs/a.txt", "alpha", []float32{1, 0, 0, 0}))
	_ = s.Upsert(ctx, storeDoc("/docs/b.txt", "beta", []float32{0, 1, 0, 0}))
	_ = s.Delete(ctx, "/docs/a.txt")

	src := &sliceSource{docs: []*models.Document{
		storeDoc("/docs/b.txt", "beta", []float32{0, 1, 0, 0}),
	}}
	if err := s.Rebuild(ctx, src); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	stats, _ := s.Stats(ctx)
	if stats.Tombstones != 0 {
		t.Errorf("rebuild should compact tombstones, got %d", stats.Tombstones)
	}
	if stats.Vectors != 1 || stats.LiveVectors != 1 {
		t.Errorf("stats after rebuild: %+v", stats)
	}
	if p := s.Progress(); p.Indexed != 1 || p.Failed != 0 {
		t.Errorf("progress: %+v", p)
	}
	if s.State() != StateReady {
		t.Errorf("expected ready after rebuild, got %s", s.State())
	}
}

func TestStoreRebuildSkipsBadDocuments(t *testing.T) {
	s := newReadyStore(t)
	src := &sliceSource{docs: []*models.Document{
		storeDoc("", "invalid", nil), // empty path fails validation
		storeDoc("/docs/ok.txt", "fine", nil),
	}}
	if err := s.Rebuild(context.Background(), src); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if p := s.Progress(); p.Indexed != 1 || p.Failed != 1 {
		t.Errorf("progress: %+v", p)
	}
}

func TestStoreSchemaStaleForcesRebuild(t *testing.T) {
	dir := t.TempDir()
	if err := writeSchemaMarker(filepath.Join(dir, "schema.marker"), "stale-fingerprint"); err != nil {
		t.Fatal(err)
	}
	s := newComponents(t, dir)
	ctx := context.Background()

	err := s.Open(ctx)
	if !errors.Is(err, ErrSchemaStale) {
		t.Fatalf("expected ErrSchemaStale, got %v", err)
	}
	if s.State() != StateUninitialized {
		t.Errorf("store must stay uninitialized on stale schema, got %s", s.State())
	}

	// Rebuild from the stale state recovers the store.
	src := &sliceSource{docs: []*models.Document{storeDoc("/docs/a.txt", "alpha", nil)}}
	if err := s.Rebuild(ctx, src); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if s.State() != StateReady {
		t.Errorf("expected ready, got %s", s.State())
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	// A second open now sees a matching marker.
	s2 := newComponents(t, dir)
	if err := s2.Open(ctx); err != nil {
		t.Fatalf("reopen after rebuild: %v", err)
	}
}

func TestStorePersistAndReload(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := newComponents(t, dir)
	if err := s.Open(ctx); err != nil {
		t.Fatal(err)
	}
	_ = s.Upsert(ctx, storeDoc("/docs/a.txt", "alpha", []float32{1, 0, 0, 0}))
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2 := newComponents(t, dir)
	if err := s2.Open(ctx); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	hits, err := s2.SearchVector(ctx, []float32{1, 0, 0, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Path != "/docs/a.txt" {
		t.Errorf("vector state lost across restart: %+v", hits)
	}
	kwHits, _ := s2.SearchKeyword(ctx, "alpha", 10)
	if len(kwHits) != 1 {
		t.Errorf("keyword state lost across restart: %+v", kwHits)
	}
}

func TestSchemaFingerprintChangesWithInputs(t *testing.T) {
	a := SchemaFingerprint([]string{"f1:text"}, 4)
	b := SchemaFingerprint([]string{"f1:text", "f2:text"}, 4)
	c := SchemaFingerprint([]string{"f1:text"}, 8)
	if a == b || a == c {
		t.Error("fingerprint must change when fields or dimensions change")
	}
	if a != SchemaFingerprint([]string{"f1:text"}, 4) {
		t.Error("fingerprint must be deterministic")
	}
}

func TestStoreCloseIdempotent(t *testing.T) {
	s := newReadyStore(t)
	_ = s.Upsert(context.Background(), storeDoc("/docs/a.txt", "alpha", nil))
	if err := s.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	// The cleanup registered by newComponents closes a third time.
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestStoreOpenCorruptVectorIndexForcesRebuild(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	if err := os.WriteFile(filepath.Join(dir, "vectors.bin"), []byte("garbage"), 0644); err != nil {
		t.Fatal(err)
	}
	s := newComponents(t, dir)
	if err := s.Open(ctx); !errors.Is(err, ErrSchemaStale) {
		t.Fatalf("corrupt vector index should demand a rebuild, got %v", err)
	}
	if s.State() != StateUninitialized {
		t.Errorf("store must stay uninitialized, got %s", s.State())
	}

	src := &sliceSource{docs: []*models.Document{storeDoc("/docs/a.txt", "alpha", []float32{1, 0, 0, 0})}}
	if err := s.Rebuild(ctx, src); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	hits, err := s.SearchVector(ctx, []float32{1, 0, 0, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Errorf("rebuild did not recover the vector index: %+v", hits)
	}
}

func TestStoreOpenCorruptIDMapForcesRebuild(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "idmap.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	s := newComponents(t, dir)
	if err := s.Open(context.Background()); !errors.Is(err, ErrSchemaStale) {
		t.Fatalf("corrupt id map should demand a rebuild, got %v", err)
	}
}

// failingCatalog fails Upsert on demand so rollback paths can be exercised.
type failingCatalog struct {
	storage.Catalog
	failUpsert bool
}

func (c *failingCatalog) Upsert(ctx context.Context, doc *models.Document) error {
	if c.failUpsert {
		return errors.New("catalog unavailable")
	}
	return c.Catalog.Upsert(ctx, doc)
}

func TestStoreUpsertRollbackKeepsPriorEntry(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	cat, err := storage.NewSQLiteCatalog(filepath.Join(dir, "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	fc := &failingCatalog{Catalog: cat}
	kw, err := keyword.NewBleveIndex(filepath.Join(dir, "keyword"))
	if err != nil {
		t.Fatal(err)
	}
	vec, err := vector.NewFlatIndex(testDims)
	if err != nil {
		t.Fatal(err)
	}
	s := New(fc, kw, vec, vector.NewIDMap(), Options{
		VectorIndexPath:  filepath.Join(dir, "vectors.bin"),
		IDMapPath:        filepath.Join(dir, "idmap.json"),
		SchemaMarkerPath: filepath.Join(dir, "schema.marker"),
		Dimensions:       testDims,
	})
	t.Cleanup(func() { _ = s.Close() })
	if err := s.Open(ctx); err != nil {
		t.Fatal(err)
	}

	if err := s.Upsert(ctx, storeDoc("/docs/a.txt", "alpha content", nil)); err != nil {
		t.Fatal(err)
	}

	fc.failUpsert = true
	if err := s.Upsert(ctx, storeDoc("/docs/a.txt", "beta content", nil)); err == nil {
		t.Fatal("expected catalog failure")
	}

	// The failed re-index must not erase the previous good entry.
	hits, err := s.SearchKeyword(ctx, "alpha", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Errorf("prior keyword entry lost after rollback: %+v", hits)
	}
	if hits, _ := s.SearchKeyword(ctx, "beta", 10); len(hits) != 0 {
		t.Errorf("rolled-back content still searchable: %+v", hits)
	}
}
