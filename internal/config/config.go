// Package config provides configuration loading and structs for File-tools.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Buffer    BufferConfig    `yaml:"buffer"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the catalog, indexes, and metadata.
type StorageConfig struct {
	CatalogPath      string `yaml:"catalog_path"`
	KeywordIndexPath string `yaml:"keyword_index_path"`
	VectorIndexPath  string `yaml:"vector_index_path"`
	IDMapPath        string `yaml:"id_map_path"`
	SchemaMarkerPath string `yaml:"schema_marker_path"`
}

// EmbeddingConfig holds embedder settings. When Enabled is false, or the
// embedder fails to initialize, the engine serves keyword-only search.
type EmbeddingConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
	// Workers bounds the embedding worker pool; never fork-per-document.
	Workers int `yaml:"workers"`
}

// SearchConfig holds retrieval and fusion settings.
type SearchConfig struct {
	TextWeight   float64 `yaml:"text_weight"`
	VectorWeight float64 `yaml:"vector_weight"`
	MaxResults   int     `yaml:"max_results"`
	DefaultLimit int     `yaml:"default_limit"`
	// Oversample multiplies the per-branch candidate count before fusion.
	Oversample int     `yaml:"oversample"`
	MinScore   float64 `yaml:"min_score"`
	// FilenameBoost is the additive bonus for a literal filename substring match.
	FilenameBoost float64 `yaml:"filename_boost"`
	// HybridBoost multiplies the fused score when both branches agree on a path.
	HybridBoost float64 `yaml:"hybrid_boost"`
	// CharOverlapWeight weighs the single-character overlap term for CJK queries.
	CharOverlapWeight float64 `yaml:"char_overlap_weight"`
	SnippetLength     int     `yaml:"snippet_length"`
	CacheEnabled      bool    `yaml:"cache_enabled"`
	CacheTTLSeconds   int     `yaml:"cache_ttl_seconds"`
	CacheSize         int     `yaml:"cache_size"`
}

// BufferConfig holds change-buffer thresholds.
type BufferConfig struct {
	// Capacity bounds buffered entries; the oldest entry is evicted beyond it.
	Capacity int `yaml:"capacity"`
	// FlushThreshold is the entry count that triggers a flush.
	FlushThreshold int `yaml:"flush_threshold"`
	// MaxAgeSeconds bounds staleness: a flush triggers once this much time has
	// passed since the last one, regardless of entry count.
	MaxAgeSeconds int `yaml:"max_age_seconds"`
	// MaxRetries bounds re-apply attempts for a failed entry.
	MaxRetries int `yaml:"max_retries"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, expands paths, applies
// defaults, and validates. Returns an error if the file cannot be read or
// parsed, or if a value is out of range (fail fast, before serving anything).
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configDir := filepath.Dir(path)
	cfg.Storage.CatalogPath = expandPath(cfg.Storage.CatalogPath, configDir)
	cfg.Storage.KeywordIndexPath = expandPath(cfg.Storage.KeywordIndexPath, configDir)
	cfg.Storage.VectorIndexPath = expandPath(cfg.Storage.VectorIndexPath, configDir)
	cfg.Storage.IDMapPath = expandPath(cfg.Storage.IDMapPath, configDir)
	cfg.Storage.SchemaMarkerPath = expandPath(cfg.Storage.SchemaMarkerPath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Validate checks value ranges. Weight semantics: both zero means "use equal
// split"; one zero means the other branch carries the full weight; otherwise
// they are renormalized to sum to 1.
func (c *Config) Validate() error {
	s := &c.Search
	if s.TextWeight < 0 || s.VectorWeight < 0 {
		return fmt.Errorf("search weights must be non-negative")
	}
	switch {
	case s.TextWeight == 0 && s.VectorWeight == 0:
		s.TextWeight, s.VectorWeight = 0.5, 0.5
	case s.TextWeight == 0:
		s.VectorWeight = 1.0
	case s.VectorWeight == 0:
		s.TextWeight = 1.0
	default:
		total := s.TextWeight + s.VectorWeight
		s.TextWeight /= total
		s.VectorWeight /= total
	}
	if c.Buffer.FlushThreshold > c.Buffer.Capacity {
		return fmt.Errorf("buffer flush_threshold (%d) exceeds capacity (%d)",
			c.Buffer.FlushThreshold, c.Buffer.Capacity)
	}
	if c.Embedding.Enabled && c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive")
	}
	if c.Embedding.Workers < 1 {
		return fmt.Errorf("embedding workers must be at least 1")
	}
	return nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative
// to configDir; other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
