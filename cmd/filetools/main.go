// Package main is the filetools CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Dry-U/File-tools/internal/buffer"
	"github.com/Dry-U/File-tools/internal/cli"
	"github.com/Dry-U/File-tools/internal/config"
	"github.com/Dry-U/File-tools/internal/embedding"
	"github.com/Dry-U/File-tools/internal/extract"
	"github.com/Dry-U/File-tools/internal/ingest"
	"github.com/Dry-U/File-tools/internal/keyword"
	"github.com/Dry-U/File-tools/internal/models"
	"github.com/Dry-U/File-tools/internal/search"
	"github.com/Dry-U/File-tools/internal/server"
	"github.com/Dry-U/File-tools/internal/storage"
	"github.com/Dry-U/File-tools/internal/store"
	"github.com/Dry-U/File-tools/internal/vector"
	"github.com/Dry-U/File-tools/internal/watcher"
	"github.com/Dry-U/File-tools/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/filetools/config.yaml"

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory takes precedence (for development), so "filetools
// server" from the project dir uses the project's config. Returns the config
// and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "rebuild":
		runRebuild()
	case "delete":
		runDelete()
	case "watch":
		runWatch()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("filetools version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (file events, flushes, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchSvc := watcher.New(
		components.Buffer,
		cfg.Watch.Directories,
		cfg.Watch.Extensions,
		cfg.Watch.RecursiveOrDefault(),
		watcher.WithLogger(logger),
	)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := watchSvc.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	defer watchSvc.Stop()
	// Pick up files created while the server was down; unchanged ones are
	// skipped at apply time.
	go watchSvc.SyncExistingFiles()

	applierCtx, applierCancel := context.WithCancel(context.Background())
	applierDone := make(chan struct{})
	go func() {
		components.Applier.Run(applierCtx)
		close(applierDone)
	}()

	srv := server.NewServer(
		components.Engine,
		components.Store,
		components.Buffer,
		cfg,
		logger,
		server.WithWatcher(watchSvc),
		server.WithRebuildSource(components.RebuildSource),
		server.WithConfigPath(resolvedConfigPath),
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	applierCancel()
	<-applierDone // final flush drains buffered changes
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: filetools search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Results fuse keyword and vector scores. A trailing file-type word in the query
("budget pdf") restricts results to that type.

Examples:
  filetools search quarterly budget
  filetools search "quarterly budget"             # same as above
  filetools search --text-weight 1 exact terms    # keyword-only
  filetools search --type pdf,docx budget         # explicit type filter
  filetools search --min-score 0.2 --limit 20 your query
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the
// query to the front of the slice so that flag.Parse() sees them. Go's flag
// package stops at the first non-flag argument.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runSearch() {
	searchArgs := searchArgsReorder(os.Args[2:])

	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = direct index access when the server is not running)")
	limit := fs.Int("limit", 10, "number of results")
	minScore := fs.Float64("min-score", 0, "minimum fused score (0 = config default)")
	textWeight := fs.Float64("text-weight", 0, "keyword branch weight (0 = config default)")
	vectorWeight := fs.Float64("vector-weight", 0, "vector branch weight (0 = config default)")
	fileTypes := fs.String("type", "", "comma-separated file type filter (e.g. pdf,docx)")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgs)

	if fs.NArg() < 1 {
		printSearchUsage(fs)
		os.Exit(1)
	}
	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}

	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	query := &models.SearchQuery{
		Query:        queryStr,
		Limit:        *limit,
		MinScore:     *minScore,
		TextWeight:   *textWeight,
		VectorWeight: *vectorWeight,
	}
	if *fileTypes != "" {
		query.Filters = &models.SearchFilters{FileTypes: strings.Split(*fileTypes, ",")}
	}

	if *serverURL != "" {
		// Use the HTTP API when the server is running (avoids bleve/SQLite
		// lock conflicts with the server process).
		response, err := searchViaHTTP(*serverURL, query)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	response, err := components.Engine.Search(context.Background(), query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func searchViaHTTP(serverURL string, query *models.SearchQuery) (*models.SearchResponse, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/search", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var response models.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &response, nil
}

func runRebuild() {
	fs := flag.NewFlagSet("rebuild", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = rebuild directly without a server)")
	wait := fs.Bool("wait", true, "wait for the rebuild to finish")
	_ = fs.Parse(os.Args[2:])

	if *serverURL != "" {
		job, err := rebuildViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Rebuild failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Rebuild started: %s\n", job)
		if !*wait {
			return
		}
		for {
			status, errMsg, err := rebuildStatusViaHTTP(*serverURL, job)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Status poll failed: %v\n", err)
				os.Exit(1)
			}
			switch status {
			case "done":
				fmt.Println("Rebuild finished")
				return
			case "failed":
				fmt.Fprintf(os.Stderr, "Rebuild failed: %s\n", errMsg)
				os.Exit(1)
			}
			time.Sleep(500 * time.Millisecond)
		}
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	if err := components.Store.Rebuild(context.Background(), components.RebuildSource); err != nil {
		fmt.Fprintf(os.Stderr, "Rebuild failed: %v\n", err)
		os.Exit(1)
	}
	progress := components.Store.Progress()
	fmt.Printf("Rebuild finished: %d indexed, %d skipped\n", progress.Indexed, progress.Failed)
}

func rebuildViaHTTP(serverURL string) (string, error) {
	resp, err := http.Post(serverURL+"/api/v1/rebuild", "application/json", nil)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var job struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return job.ID, nil
}

func rebuildStatusViaHTTP(serverURL, jobID string) (status, errMsg string, err error) {
	resp, err := http.Get(serverURL + "/api/v1/rebuild/" + jobID)
	if err != nil {
		return "", "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", "", fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var out struct {
		Job struct {
			Status string `json:"status"`
			Error  string `json:"error"`
		} `json:"job"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", "", fmt.Errorf("decode response: %w", err)
	}
	return out.Job.Status, out.Job.Error, nil
}

// statusResponse is the shape of the GET /api/v1/status response.
type statusResponse struct {
	Index          *store.Stats  `json:"index"`
	Buffer         *buffer.Stats `json:"buffer,omitempty"`
	DiskUsageBytes *int64        `json:"disk_usage_bytes,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = direct index access)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status statusResponse
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = *res
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		logger, err := utils.NewLogger(cfg.Debug)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
			os.Exit(1)
		}
		defer logger.Sync()
		components, err := initializeComponents(cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close()
		stats, err := components.Store.Stats(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Stats failed: %v\n", err)
			os.Exit(1)
		}
		status.Index = stats
		if diskBytes, err := storage.DiskUsageBytes(
			cfg.Storage.CatalogPath,
			cfg.Storage.KeywordIndexPath,
			cfg.Storage.VectorIndexPath,
		); err == nil {
			status.DiskUsageBytes = &diskBytes
		}
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		if status.Index != nil {
			fmt.Printf("state:         %s\n", status.Index.State)
			fmt.Printf("documents:     %d\n", status.Index.Documents)
			fmt.Printf("keyword_docs:  %d\n", status.Index.KeywordDocs)
			fmt.Printf("vectors:       %d (%d live, %d tombstoned)\n",
				status.Index.Vectors, status.Index.LiveVectors, status.Index.Tombstones)
			fmt.Printf("rebuilds:      %d\n", status.Index.Rebuilds)
		}
		if status.Buffer != nil {
			fmt.Printf("buffered:      %d (dropped %d, discarded %d)\n",
				status.Buffer.Buffered, status.Buffer.Dropped, status.Buffer.Discarded)
		}
		if status.DiskUsageBytes != nil {
			fmt.Printf("disk_bytes:    %d\n", *status.DiskUsageBytes)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := http.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	var s statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &s, nil
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = direct index access)")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: filetools delete [flags] <path>")
		os.Exit(1)
	}
	path, _ := filepath.Abs(fs.Arg(0))

	if *serverURL != "" {
		req, _ := http.NewRequest(http.MethodDelete,
			*serverURL+"/api/v1/documents?path="+url.QueryEscape(path), nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Fprintf(os.Stderr, "Delete failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Document deleted: %s\n", path)
		return
	}

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	if err := components.Store.Delete(context.Background(), path); err != nil {
		fmt.Fprintf(os.Stderr, "Deletion failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Document deleted: %s\n", path)
}

func runWatch() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: filetools watch <add|remove|list> [path]")
		fmt.Println("  filetools watch add <path>     Add directory to watch")
		fmt.Println("  filetools watch remove <path>  Remove directory from watch")
		fmt.Println("  filetools watch list           List watched directories")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[3:])
	switch sub {
	case "add":
		if fs.NArg() < 1 {
			fmt.Println("Usage: filetools watch add <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		body, _ := json.Marshal(map[string]interface{}{"path": path, "sync": true})
		resp, err := http.Post(*serverURL+"/api/v1/watch/directories", "application/json", bytes.NewReader(body))
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Add failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Added: %s\n", path)
	case "remove":
		if fs.NArg() < 1 {
			fmt.Println("Usage: filetools watch remove <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		req, _ := http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/watch/directories?path="+url.QueryEscape(path), nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Remove failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Removed: %s\n", path)
	case "list":
		resp, err := http.Get(*serverURL + "/api/v1/watch/directories")
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("List failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var out struct {
			Directories []string `json:"directories"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			fmt.Printf("Parse failed: %v\n", err)
			os.Exit(1)
		}
		for _, d := range out.Directories {
			fmt.Println(d)
		}
	default:
		fmt.Printf("Unknown watch subcommand: %s\n", sub)
		os.Exit(1)
	}
}

// Components holds initialized services.
type Components struct {
	Store         *store.Store
	Embedder      embedding.Embedder
	Engine        *search.Engine
	Buffer        *buffer.Buffer
	Applier       *ingest.Applier
	RebuildSource store.Source
}

func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	catalog, err := storage.NewSQLiteCatalog(cfg.Storage.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize catalog: %w", err)
	}
	keywordIndex, err := keyword.NewBleveIndex(cfg.Storage.KeywordIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}
	vectorIndex, err := vector.NewFlatIndex(cfg.Embedding.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}

	// A missing or broken embedder never blocks startup: the engine serves
	// keyword-only results and marks responses degraded.
	var embedder embedding.Embedder
	if cfg.Embedding.Enabled {
		onnxEmbedder, err := embedding.NewONNXEmbedder(
			cfg.Embedding.ModelPath,
			cfg.Embedding.Dimensions,
			cfg.Embedding.MaxTokens,
			cfg.Embedding.CacheSize,
		)
		if err != nil {
			logger.Warn("embedder unavailable, serving keyword-only results", zap.Error(err))
		} else {
			pooled, err := embedding.NewPooledEmbedder(onnxEmbedder, cfg.Embedding.Workers)
			if err != nil {
				embedder = onnxEmbedder
			} else {
				embedder = pooled
			}
		}
	}

	st := store.New(catalog, keywordIndex, vectorIndex, vector.NewIDMap(), store.Options{
		VectorIndexPath:  cfg.Storage.VectorIndexPath,
		IDMapPath:        cfg.Storage.IDMapPath,
		SchemaMarkerPath: cfg.Storage.SchemaMarkerPath,
		Dimensions:       cfg.Embedding.Dimensions,
	}, store.WithLogger(logger))

	registry := extract.NewRegistry()
	fileSource := extract.NewFileSource(
		registry,
		cfg.Watch.Directories,
		cfg.Watch.Extensions,
		cfg.Watch.RecursiveOrDefault(),
		extract.WithSourceLogger(logger),
	)
	rebuildSource := ingest.NewEmbeddingSource(fileSource, embedder, logger)

	ctx := context.Background()
	if err := st.Open(ctx); err != nil {
		if !errors.Is(err, store.ErrSchemaStale) {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		logger.Warn("index schema changed, rebuilding from watched directories")
		if err := st.Rebuild(ctx, rebuildSource); err != nil {
			return nil, fmt.Errorf("schema rebuild failed: %w", err)
		}
	}

	engine := search.NewEngine(st, embedder, &cfg.Search, search.WithLogger(logger))

	buf := buffer.New(
		cfg.Buffer.Capacity,
		cfg.Buffer.FlushThreshold,
		time.Duration(cfg.Buffer.MaxAgeSeconds)*time.Second,
		cfg.Buffer.MaxRetries,
		buffer.WithLogger(logger),
	)
	applier := ingest.New(buf, fileSource, st, embedder,
		ingest.WithLogger(logger),
		ingest.WithOnApply(engine.InvalidateCache),
	)

	return &Components{
		Store:         st,
		Embedder:      embedder,
		Engine:        engine,
		Buffer:        buf,
		Applier:       applier,
		RebuildSource: rebuildSource,
	}, nil
}

func printUsage() {
	fmt.Println(`filetools - local hybrid (keyword + vector) file search

Usage:
  filetools server [flags]           Start the HTTP server
  filetools search [flags] <query>   Search indexed files
  filetools rebuild [flags]          Rebuild the indexes from scratch
  filetools delete [flags] <path>    Remove a file from the index
  filetools status [flags]           Show index/buffer status
  filetools watch <add|remove|list>  Manage watched directories
  filetools version                  Show version
  filetools help                     Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/filetools/config.yaml)
  --debug            Enable debug logging (file events, flushes, etc.)

Search Flags:
  --config string         Config file path (direct mode)
  --server string         Server URL (default: http://localhost:8080). Use --server "" for direct index access.
  --limit int             Number of results (default: 10)
  --min-score float       Minimum fused score (default: config value)
  --text-weight float     Keyword branch weight (default: config value)
  --vector-weight float   Vector branch weight (default: config value)
  --type string           Comma-separated file type filter (e.g. pdf,docx)
  --output string         Output format: text, compact, or json (default: text)

Rebuild Flags:
  --config string    Config file path (direct mode)
  --server string    Server URL. Use --server "" to rebuild without a running server.
  --wait             Wait for the rebuild to finish (default: true)

Examples:
  filetools server
  filetools search quarterly budget
  filetools search --type pdf budget
  filetools search --output json "query"
  filetools rebuild
  filetools delete /path/to/file.pdf
  filetools status --output json
  filetools watch add /path/to/docs`)
}
