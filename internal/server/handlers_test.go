package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Dry-U/File-tools/internal/buffer"
	"github.com/Dry-U/File-tools/internal/config"
	"github.com/Dry-U/File-tools/internal/embedding"
	"github.com/Dry-U/File-tools/internal/extract"
	"github.com/Dry-U/File-tools/internal/ingest"
	"github.com/Dry-U/File-tools/internal/keyword"
	"github.com/Dry-U/File-tools/internal/models"
	"github.com/Dry-U/File-tools/internal/search"
	"github.com/Dry-U/File-tools/internal/storage"
	"github.com/Dry-U/File-tools/internal/store"
	"github.com/Dry-U/File-tools/internal/vector"
	"github.com/Dry-U/File-tools/internal/watcher"
)

const testDims = 8

type testServer struct {
	srv    *Server
	store  *store.Store
	buffer *buffer.Buffer
	cfg    *config.Config
}

func testConfig(stateDir string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Storage: config.StorageConfig{
			CatalogPath:      filepath.Join(stateDir, "catalog.db"),
			KeywordIndexPath: filepath.Join(stateDir, "keyword"),
			VectorIndexPath:  filepath.Join(stateDir, "vectors.bin"),
			IDMapPath:        filepath.Join(stateDir, "idmap.json"),
			SchemaMarkerPath: filepath.Join(stateDir, "schema.marker"),
		},
		Search: config.SearchConfig{
			TextWeight:    0.6,
			VectorWeight:  0.4,
			MaxResults:    100,
			DefaultLimit:  10,
			Oversample:    3,
			FilenameBoost: 0.15,
			HybridBoost:   1.1,
			SnippetLength: 200,
		},
	}
}

func newTestServer(t *testing.T, opts ...Option) *testServer {
	t.Helper()
	cfg := testConfig(t.TempDir())

	cat, err := storage.NewSQLiteCatalog(cfg.Storage.CatalogPath)
	if err != nil {
		t.Fatal(err)
	}
	kw, err := keyword.NewBleveIndex(cfg.Storage.KeywordIndexPath)
	if err != nil {
		t.Fatal(err)
	}
	vec, err := vector.NewFlatIndex(testDims)
	if err != nil {
		t.Fatal(err)
	}
	st := store.New(cat, kw, vec, vector.NewIDMap(), store.Options{
		VectorIndexPath:  cfg.Storage.VectorIndexPath,
		IDMapPath:        cfg.Storage.IDMapPath,
		SchemaMarkerPath: cfg.Storage.SchemaMarkerPath,
		Dimensions:       testDims,
	})
	if err := st.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })

	emb := embedding.NewMockEmbedder(testDims)
	engine := search.NewEngine(st, emb, &cfg.Search)
	buf := buffer.New(100, 50, time.Minute, 2)
	srv := NewServer(engine, st, buf, cfg, zap.NewNop(), opts...)
	return &testServer{srv: srv, store: st, buffer: buf, cfg: cfg}
}

func (ts *testServer) index(t *testing.T, path, content string) {
	t.Helper()
	emb := embedding.NewMockEmbedder(testDims)
	vecs, err := emb.Embed(context.Background(), content)
	if err != nil {
		t.Fatal(err)
	}
	doc := &models.Document{
		Path:       path,
		Content:    content,
		Size:       int64(len(content)),
		CreatedAt:  time.Now(),
		ModifiedAt: time.Now(),
		Embedding:  vecs,
	}
	if err := ts.store.Upsert(context.Background(), doc); err != nil {
		t.Fatal(err)
	}
}

func (ts *testServer) do(t *testing.T, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
}

func TestHandleSearch(t *testing.T) {
	ts := newTestServer(t)
	ts.index(t, "/docs/budget_report.pdf", "annual budget execution summary")
	ts.index(t, "/docs/notes.txt", "meeting notes about the roadmap")

	rec := ts.do(t, http.MethodPost, "/api/v1/search", &models.SearchQuery{Query: "budget"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp models.SearchResponse
	decode(t, rec, &resp)
	if len(resp.Results) == 0 {
		t.Fatal("expected results")
	}
	if resp.Results[0].Path != "/docs/budget_report.pdf" {
		t.Errorf("unexpected top result: %s", resp.Results[0].Path)
	}
}

func TestHandleSearchBadBody(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status %d", rec.Code)
	}
}

func TestHandleGetDocument(t *testing.T) {
	ts := newTestServer(t)
	ts.index(t, "/docs/a.txt", "alpha content")

	rec := ts.do(t, http.MethodGet, "/api/v1/documents?path=/docs/a.txt", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var doc models.Document
	decode(t, rec, &doc)
	if doc.Path != "/docs/a.txt" || doc.Content != "alpha content" {
		t.Errorf("unexpected document: %+v", doc)
	}

	if rec := ts.do(t, http.MethodGet, "/api/v1/documents?path=/docs/missing.txt", nil); rec.Code != http.StatusNotFound {
		t.Errorf("missing document: status %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/api/v1/documents", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("missing path param: status %d", rec.Code)
	}
}

func TestHandleDeleteDocument(t *testing.T) {
	ts := newTestServer(t)
	ts.index(t, "/docs/a.txt", "alpha content")

	rec := ts.do(t, http.MethodDelete, "/api/v1/documents?path=/docs/a.txt", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if rec := ts.do(t, http.MethodGet, "/api/v1/documents?path=/docs/a.txt", nil); rec.Code != http.StatusNotFound {
		t.Errorf("document should be gone, status %d", rec.Code)
	}
}

func TestHandleRebuild(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha content"), 0600); err != nil {
		t.Fatal(err)
	}
	source := ingest.NewEmbeddingSource(
		extract.NewFileSource(extract.NewRegistry(), []string{dir}, nil, true),
		embedding.NewMockEmbedder(testDims), nil)
	ts := newTestServer(t, WithRebuildSource(source))

	rec := ts.do(t, http.MethodPost, "/api/v1/rebuild", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var job struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	decode(t, rec, &job)
	if job.ID == "" || job.Status != "running" {
		t.Fatalf("unexpected job: %+v", job)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		rec := ts.do(t, http.MethodGet, "/api/v1/rebuild/"+job.ID, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("job status: %d", rec.Code)
		}
		var status struct {
			Job struct {
				Status string `json:"status"`
				Error  string `json:"error"`
			} `json:"job"`
		}
		decode(t, rec, &status)
		if status.Job.Status == "done" {
			break
		}
		if status.Job.Status == "failed" {
			t.Fatalf("rebuild failed: %s", status.Job.Error)
		}
		if time.Now().After(deadline) {
			t.Fatal("rebuild did not finish in time")
		}
		time.Sleep(20 * time.Millisecond)
	}

	target := fmt.Sprintf("/api/v1/documents?path=%s", filepath.Join(dir, "a.txt"))
	if rec := ts.do(t, http.MethodGet, target, nil); rec.Code != http.StatusOK {
		t.Errorf("rebuilt document missing: status %d", rec.Code)
	}
}

func TestHandleRebuildNotConfigured(t *testing.T) {
	ts := newTestServer(t)
	if rec := ts.do(t, http.MethodPost, "/api/v1/rebuild", nil); rec.Code != http.StatusNotImplemented {
		t.Errorf("status %d", rec.Code)
	}
}

func TestHandleRebuildStatusUnknownJob(t *testing.T) {
	ts := newTestServer(t)
	if rec := ts.do(t, http.MethodGet, "/api/v1/rebuild/no-such-job", nil); rec.Code != http.StatusNotFound {
		t.Errorf("status %d", rec.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	ts := newTestServer(t)
	ts.index(t, "/docs/a.txt", "alpha content")

	rec := ts.do(t, http.MethodGet, "/api/v1/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Index struct {
			State     string `json:"state"`
			Documents int64  `json:"documents"`
		} `json:"index"`
		Buffer buffer.Stats `json:"buffer"`
	}
	decode(t, rec, &resp)
	if resp.Index.State != "ready" || resp.Index.Documents != 1 {
		t.Errorf("unexpected index stats: %+v", resp.Index)
	}
}

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var resp map[string]string
	decode(t, rec, &resp)
	if resp["status"] != "ok" || resp["state"] != "ready" {
		t.Errorf("unexpected health: %v", resp)
	}
}

func TestWatchDirectoryManagement(t *testing.T) {
	root := t.TempDir()
	other := t.TempDir()
	buf := buffer.New(100, 50, time.Minute, 2)
	w := watcher.New(buf, []string{root}, nil, true)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(w.Stop)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	ts := newTestServer(t, WithWatcher(w), WithConfigPath(configPath))

	rec := ts.do(t, http.MethodGet, "/api/v1/watch/directories", nil)
	var list struct {
		Directories []string `json:"directories"`
	}
	decode(t, rec, &list)
	if len(list.Directories) != 1 {
		t.Fatalf("expected 1 directory, got %v", list.Directories)
	}

	rec = ts.do(t, http.MethodPost, "/api/v1/watch/directories", map[string]string{"path": other})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add: status %d: %s", rec.Code, rec.Body.String())
	}
	if got := len(w.Directories()); got != 2 {
		t.Fatalf("expected 2 roots after add, got %d", got)
	}

	// Runtime changes must survive a restart via the config file.
	saved, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("persisted config unreadable: %v", err)
	}
	if len(saved.Watch.Directories) != 2 {
		t.Errorf("persisted directories: %v", saved.Watch.Directories)
	}

	rec = ts.do(t, http.MethodDelete, "/api/v1/watch/directories?path="+other, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("remove: status %d: %s", rec.Code, rec.Body.String())
	}
	if got := len(w.Directories()); got != 1 {
		t.Errorf("expected 1 root after remove, got %d", got)
	}

	if rec := ts.do(t, http.MethodPost, "/api/v1/watch/directories", map[string]string{"path": ""}); rec.Code != http.StatusBadRequest {
		t.Errorf("empty path: status %d", rec.Code)
	}
}

func TestWatchEndpointsNotEnabled(t *testing.T) {
	ts := newTestServer(t)
	if rec := ts.do(t, http.MethodGet, "/api/v1/watch/directories", nil); rec.Code != http.StatusNotImplemented {
		t.Errorf("status %d", rec.Code)
	}
}
