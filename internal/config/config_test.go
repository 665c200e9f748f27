package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	ApplyDefaults(&cfg)
	if cfg.Buffer.Capacity != 1000 {
		t.Errorf("expected buffer capacity 1000, got %d", cfg.Buffer.Capacity)
	}
	if cfg.Buffer.FlushThreshold != 500 {
		t.Errorf("expected flush threshold 500, got %d", cfg.Buffer.FlushThreshold)
	}
	if cfg.Buffer.MaxAgeSeconds != 300 {
		t.Errorf("expected max age 300, got %d", cfg.Buffer.MaxAgeSeconds)
	}
	if cfg.Search.TextWeight != 0.5 || cfg.Search.VectorWeight != 0.5 {
		t.Errorf("expected equal default weights, got %f/%f",
			cfg.Search.TextWeight, cfg.Search.VectorWeight)
	}
	if cfg.Embedding.Workers != 4 {
		t.Errorf("expected 4 embedding workers, got %d", cfg.Embedding.Workers)
	}
}

func TestValidateWeightRenormalization(t *testing.T) {
	cfg := Config{}
	ApplyDefaults(&cfg)
	cfg.Search.TextWeight = 3
	cfg.Search.VectorWeight = 1
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Search.TextWeight != 0.75 || cfg.Search.VectorWeight != 0.25 {
		t.Errorf("weights not renormalized: %f/%f", cfg.Search.TextWeight, cfg.Search.VectorWeight)
	}

	cfg = Config{}
	ApplyDefaults(&cfg)
	cfg.Search.TextWeight = 0.6
	cfg.Search.VectorWeight = 0
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Search.TextWeight != 1.0 {
		t.Errorf("disabled vector branch should redistribute to text, got %f", cfg.Search.TextWeight)
	}
}

func TestValidateFailsFast(t *testing.T) {
	cfg := Config{}
	ApplyDefaults(&cfg)
	cfg.Buffer.FlushThreshold = 2000
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when flush threshold exceeds capacity")
	}

	cfg = Config{}
	ApplyDefaults(&cfg)
	cfg.Search.TextWeight = -0.1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative weight")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
debug: true
search:
  text_weight: 0.6
  vector_weight: 0.4
  max_results: 20
buffer:
  capacity: 100
  flush_threshold: 50
storage:
  catalog_path: ./data/catalog.db
`)
	if err := os.WriteFile(path, content, 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.Debug {
		t.Error("debug should be true")
	}
	if cfg.Search.MaxResults != 20 {
		t.Errorf("expected max_results 20, got %d", cfg.Search.MaxResults)
	}
	if cfg.Storage.CatalogPath != filepath.Join(dir, "data/catalog.db") {
		t.Errorf("catalog path not expanded: %q", cfg.Storage.CatalogPath)
	}
	if cfg.Buffer.MaxRetries != 3 {
		t.Errorf("defaults not applied, max retries %d", cfg.Buffer.MaxRetries)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}
