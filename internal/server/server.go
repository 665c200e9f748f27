// Package server provides the HTTP API: search, document lookup and removal,
// index rebuilds, status, and watch directory management.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Dry-U/File-tools/internal/buffer"
	"github.com/Dry-U/File-tools/internal/config"
	"github.com/Dry-U/File-tools/internal/search"
	"github.com/Dry-U/File-tools/internal/store"
	"github.com/Dry-U/File-tools/internal/watcher"
)

// Server is the HTTP front end. Writes flow through the change buffer and the
// store; the server never touches the indexes directly.
type Server struct {
	engine *search.Engine
	store  *store.Store
	buffer *buffer.Buffer
	cfg    *config.Config
	logger *zap.Logger
	server *http.Server

	// Optional collaborators.
	watch         *watcher.Watcher
	rebuildSource store.Source
	configPath    string
	configMu      sync.Mutex

	jobsMu sync.Mutex
	jobs   map[string]*rebuildJob
}

// Option configures optional server collaborators.
type Option func(*Server)

// WithWatcher enables the watch directory management endpoints.
func WithWatcher(w *watcher.Watcher) Option {
	return func(s *Server) { s.watch = w }
}

// WithRebuildSource enables the rebuild endpoint, streaming documents from
// src when a rebuild is requested.
func WithRebuildSource(src store.Source) Option {
	return func(s *Server) { s.rebuildSource = src }
}

// WithConfigPath makes watch directory changes persistent: the config file at
// path is rewritten whenever the watched set changes.
func WithConfigPath(path string) Option {
	return func(s *Server) { s.configPath = path }
}

// NewServer creates a server with the given dependencies.
func NewServer(
	engine *search.Engine,
	st *store.Store,
	buf *buffer.Buffer,
	cfg *config.Config,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	s := &Server{
		engine: engine,
		store:  st,
		buffer: buf,
		cfg:    cfg,
		logger: logger,
		jobs:   make(map[string]*rebuildJob),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the HTTP routes. Exposed for tests.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Post("/api/v1/search", s.handleSearch)
	r.Get("/api/v1/documents", s.handleGetDocument)
	r.Delete("/api/v1/documents", s.handleDeleteDocument)
	r.Post("/api/v1/rebuild", s.handleRebuild)
	r.Get("/api/v1/rebuild/{id}", s.handleRebuildStatus)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/api/v1/watch/directories", s.handleWatchDirectoriesList)
	r.Post("/api/v1/watch/directories", s.handleWatchDirectoriesAdd)
	r.Delete("/api/v1/watch/directories", s.handleWatchDirectoriesRemove)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
