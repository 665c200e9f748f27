// Package integration exercises the full pipeline: watcher events through the
// change buffer and applier into the store, queried back through the engine.
package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Dry-U/File-tools/internal/buffer"
	"github.com/Dry-U/File-tools/internal/config"
	"github.com/Dry-U/File-tools/internal/embedding"
	"github.com/Dry-U/File-tools/internal/extract"
	"github.com/Dry-U/File-tools/internal/ingest"
	"github.com/Dry-U/File-tools/internal/keyword"
	"github.com/Dry-U/File-tools/internal/models"
	"github.com/Dry-U/File-tools/internal/search"
	"github.com/Dry-U/File-tools/internal/store"
	"github.com/Dry-U/File-tools/internal/storage"
	"github.com/Dry-U/File-tools/internal/vector"
	"github.com/Dry-U/File-tools/internal/watcher"
)

const dims = 8

type stack struct {
	watchDir string
	stateDir string
	store    *store.Store
	engine   *search.Engine
	buffer   *buffer.Buffer
	applier  *ingest.Applier
	source   *extract.FileSource
	embedder embedding.Embedder
}

func searchConfig() *config.SearchConfig {
	return &config.SearchConfig{
		TextWeight:    0.6,
		VectorWeight:  0.4,
		MaxResults:    100,
		DefaultLimit:  10,
		Oversample:    3,
		FilenameBoost: 0.15,
		HybridBoost:   1.1,
		SnippetLength: 200,
	}
}

func openStore(t *testing.T, stateDir string) *store.Store {
	t.Helper()
	cat, err := storage.NewSQLiteCatalog(filepath.Join(stateDir, "catalog.db"))
	if err != nil {
		t.Fatal(err)
	}
	kw, err := keyword.NewBleveIndex(filepath.Join(stateDir, "keyword"))
	if err != nil {
		t.Fatal(err)
	}
	vec, err := vector.NewFlatIndex(dims)
	if err != nil {
		t.Fatal(err)
	}
	st := store.New(cat, kw, vec, vector.NewIDMap(), store.Options{
		VectorIndexPath:  filepath.Join(stateDir, "vectors.bin"),
		IDMapPath:        filepath.Join(stateDir, "idmap.json"),
		SchemaMarkerPath: filepath.Join(stateDir, "schema.marker"),
		Dimensions:       dims,
	})
	if err := st.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	return st
}

func newStack(t *testing.T) *stack {
	t.Helper()
	s := &stack{
		watchDir: t.TempDir(),
		stateDir: t.TempDir(),
		embedder: embedding.NewMockEmbedder(dims),
	}
	s.store = openStore(t, s.stateDir)
	t.Cleanup(func() { _ = s.store.Close() })
	s.engine = search.NewEngine(s.store, s.embedder, searchConfig())
	s.buffer = buffer.New(1000, 100, time.Minute, 2)
	s.source = extract.NewFileSource(extract.NewRegistry(), []string{s.watchDir}, nil, true)
	s.applier = ingest.New(s.buffer, s.source, s.store, s.embedder,
		ingest.WithOnApply(s.engine.InvalidateCache))
	return s
}

func (s *stack) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(s.watchDir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func (s *stack) search(t *testing.T, query string) *models.SearchResponse {
	t.Helper()
	resp, err := s.engine.Search(context.Background(), &models.SearchQuery{Query: query})
	if err != nil {
		t.Fatalf("Search %q: %v", query, err)
	}
	return resp
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestFileLifecycleThroughWatcher(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	w := watcher.New(s.buffer, []string{s.watchDir}, nil, true)
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Stop)

	// Create: the watcher enqueues an upsert, the applier indexes it.
	path := s.write(t, "budget_report.txt", "annual budget execution summary for the finance team")
	waitFor(t, func() bool { return s.buffer.Len() > 0 }, "watcher did not enqueue the new file")
	s.applier.Flush(ctx)

	resp := s.search(t, "budget")
	if len(resp.Results) != 1 || resp.Results[0].Path != models.NormalizePath(path) {
		t.Fatalf("created file not searchable: %+v", resp.Results)
	}
	if resp.Degraded {
		t.Error("hybrid stack should not be degraded")
	}

	// Modify: new content replaces the old in all three stores.
	time.Sleep(10 * time.Millisecond) // distinct mtime
	s.write(t, "budget_report.txt", "revised forecast for next year")
	waitFor(t, func() bool { return s.buffer.Len() > 0 }, "watcher did not enqueue the modified file")
	s.applier.Flush(ctx)

	if resp := s.search(t, "forecast"); len(resp.Results) != 1 {
		t.Errorf("modified content not searchable: %+v", resp.Results)
	}
	doc, err := s.store.GetDocument(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Content != "revised forecast for next year" {
		t.Errorf("stale content after modify: %q", doc.Content)
	}

	// Delete: the file disappears from results entirely.
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return s.buffer.Len() > 0 }, "watcher did not enqueue the removal")
	s.applier.Flush(ctx)

	if resp := s.search(t, "forecast"); len(resp.Results) != 0 {
		t.Errorf("deleted file still searchable: %+v", resp.Results)
	}
	if _, err := s.store.GetDocument(ctx, path); err == nil {
		t.Error("deleted file still in catalog")
	}
}

func TestIndexSurvivesRestart(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	path := s.write(t, "notes.txt", "architecture meeting notes")
	s.buffer.Enqueue(models.NewChange(models.ChangeUpsert, path))
	s.applier.Flush(ctx)
	if err := s.store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened := openStore(t, s.stateDir)
	t.Cleanup(func() { _ = reopened.Close() })
	engine := search.NewEngine(reopened, s.embedder, searchConfig())
	resp, err := engine.Search(ctx, &models.SearchQuery{Query: "architecture"})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 1 || resp.Results[0].Path != models.NormalizePath(path) {
		t.Errorf("index did not survive restart: %+v", resp.Results)
	}
}

func TestRebuildFromWatchedDirectory(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	s.write(t, "a.txt", "first document about databases")
	s.write(t, "b.txt", "second document about networks")

	// A document that no longer has a backing file; the rebuild drops it.
	stale := &models.Document{
		Path:       "/gone/old.txt",
		Content:    "orphaned databases entry",
		Size:       10,
		CreatedAt:  time.Now(),
		ModifiedAt: time.Now(),
	}
	if err := s.store.Upsert(ctx, stale); err != nil {
		t.Fatal(err)
	}

	source := ingest.NewEmbeddingSource(s.source, s.embedder, nil)
	if err := s.store.Rebuild(ctx, source); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	stats, err := s.store.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Documents != 2 {
		t.Errorf("expected 2 documents after rebuild, got %d", stats.Documents)
	}
	if stats.Tombstones != 0 {
		t.Errorf("rebuild should compact tombstones, got %d", stats.Tombstones)
	}
	if _, err := s.store.GetDocument(ctx, "/gone/old.txt"); err == nil {
		t.Error("orphaned document should be gone after rebuild")
	}
	if resp := s.search(t, "databases"); len(resp.Results) != 1 {
		t.Errorf("rebuilt index wrong: %+v", resp.Results)
	}
}

func TestDegradedPipelineWithoutEmbedder(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()

	// No embedder anywhere: indexing and search still work, keyword-only.
	applier := ingest.New(s.buffer, s.source, s.store, nil)
	engine := search.NewEngine(s.store, nil, searchConfig())

	path := s.write(t, "plain.txt", "keyword only content")
	s.buffer.Enqueue(models.NewChange(models.ChangeUpsert, path))
	applier.Flush(ctx)

	resp, err := engine.Search(ctx, &models.SearchQuery{Query: "keyword"})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Degraded {
		t.Error("response should be degraded without an embedder")
	}
	if len(resp.Results) != 1 {
		t.Errorf("keyword results must still be served: %+v", resp.Results)
	}
}
