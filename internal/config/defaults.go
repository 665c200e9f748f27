package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.CatalogPath == "" {
		cfg.Storage.CatalogPath = "./data/catalog.db"
	}
	if cfg.Storage.KeywordIndexPath == "" {
		cfg.Storage.KeywordIndexPath = "./data/indices/keyword"
	}
	if cfg.Storage.VectorIndexPath == "" {
		cfg.Storage.VectorIndexPath = "./data/indices/vectors.bin"
	}
	if cfg.Storage.IDMapPath == "" {
		cfg.Storage.IDMapPath = "./data/indices/id_map.json"
	}
	if cfg.Storage.SchemaMarkerPath == "" {
		cfg.Storage.SchemaMarkerPath = "./data/indices/schema.version"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.Workers == 0 {
		cfg.Embedding.Workers = 4
	}
	if cfg.Search.TextWeight == 0 && cfg.Search.VectorWeight == 0 {
		cfg.Search.TextWeight = 0.5
		cfg.Search.VectorWeight = 0.5
	}
	if cfg.Search.MaxResults == 0 {
		cfg.Search.MaxResults = 50
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 10
	}
	if cfg.Search.Oversample == 0 {
		cfg.Search.Oversample = 3
	}
	if cfg.Search.FilenameBoost == 0 {
		cfg.Search.FilenameBoost = 0.15
	}
	if cfg.Search.HybridBoost == 0 {
		cfg.Search.HybridBoost = 1.1
	}
	if cfg.Search.CharOverlapWeight == 0 {
		cfg.Search.CharOverlapWeight = 0.2
	}
	if cfg.Search.SnippetLength == 0 {
		cfg.Search.SnippetLength = 200
	}
	if cfg.Search.CacheTTLSeconds == 0 {
		cfg.Search.CacheTTLSeconds = 3600
	}
	if cfg.Search.CacheSize == 0 {
		cfg.Search.CacheSize = 1000
	}
	if cfg.Buffer.Capacity == 0 {
		cfg.Buffer.Capacity = 1000
	}
	if cfg.Buffer.FlushThreshold == 0 {
		cfg.Buffer.FlushThreshold = 500
	}
	if cfg.Buffer.MaxAgeSeconds == 0 {
		cfg.Buffer.MaxAgeSeconds = 300
	}
	if cfg.Buffer.MaxRetries == 0 {
		cfg.Buffer.MaxRetries = 3
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md", ".rst", ".pdf", ".docx", ".xlsx", ".pptx"}
	}
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
