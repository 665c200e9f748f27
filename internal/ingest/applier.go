// Package ingest drains the change buffer and applies batches to the store:
// load, embed, index for upserts; index removal for deletes.
package ingest

import (
	"context"
	"errors"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/Dry-U/File-tools/internal/buffer"
	"github.com/Dry-U/File-tools/internal/embedding"
	"github.com/Dry-U/File-tools/internal/extract"
	"github.com/Dry-U/File-tools/internal/models"
	"github.com/Dry-U/File-tools/internal/store"
)

// Applier owns the flush loop. It polls the buffer's flush condition, drains
// batches, and applies entries in order. Failed entries go back to the buffer
// with bounded retries; entries that keep failing are discarded there.
type Applier struct {
	buffer   *buffer.Buffer
	source   *extract.FileSource
	store    *store.Store
	embedder embedding.Embedder // nil means index without vectors
	interval time.Duration
	logger   *zap.Logger
	onApply  func()
}

// Option configures an Applier.
type Option func(*Applier)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Applier) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithInterval sets how often the flush condition is checked.
func WithInterval(d time.Duration) Option {
	return func(a *Applier) {
		if d > 0 {
			a.interval = d
		}
	}
}

// WithOnApply registers a hook called after each applied batch, e.g. to
// invalidate the search result cache.
func WithOnApply(fn func()) Option {
	return func(a *Applier) { a.onApply = fn }
}

// New creates an applier. embedder may be nil.
func New(buf *buffer.Buffer, source *extract.FileSource, st *store.Store, embedder embedding.Embedder, opts ...Option) *Applier {
	a := &Applier{
		buffer:   buf,
		source:   source,
		store:    st,
		embedder: embedder,
		interval: time.Second,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run checks the flush condition on a ticker until ctx is cancelled, then
// makes a final flush so buffered changes are not lost on shutdown.
func (a *Applier) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			a.Flush(context.Background())
			return
		case <-ticker.C:
			if a.buffer.ShouldFlush() {
				a.Flush(ctx)
			}
		}
	}
}

// Flush drains the buffer and applies every entry. It never returns an error:
// per-entry failures are requeued or discarded, and the batch keeps going.
func (a *Applier) Flush(ctx context.Context) {
	batch := a.buffer.Drain()
	if len(batch) == 0 {
		return
	}
	applied := 0
	for _, entry := range batch {
		if ctx.Err() != nil {
			// Cancelled mid-batch: put the rest back untouched.
			a.buffer.Enqueue(entry)
			continue
		}
		if err := a.apply(ctx, entry); err != nil {
			a.retryOrDrop(entry, err)
			continue
		}
		applied++
	}
	if applied > 0 {
		if err := a.store.Persist(); err != nil {
			a.logger.Error("failed to persist indexes after flush", zap.Error(err))
		}
		if a.onApply != nil {
			a.onApply()
		}
	}
	a.logger.Info("flushed change batch",
		zap.Int("batch", len(batch)),
		zap.Int("applied", applied))
}

func (a *Applier) apply(ctx context.Context, entry *models.ChangeEntry) error {
	switch entry.Kind {
	case models.ChangeDelete:
		return a.store.Delete(ctx, entry.Path)
	default:
		return a.applyUpsert(ctx, entry)
	}
}

func (a *Applier) applyUpsert(ctx context.Context, entry *models.ChangeEntry) error {
	doc, err := a.source.LoadDocument(entry.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// File vanished between the event and the flush: treat as delete.
			return a.store.Delete(ctx, entry.Path)
		}
		return err
	}
	if a.store.HasDocument(ctx, doc) {
		return nil // unchanged since last indexing
	}
	if a.embedder != nil && doc.Content != "" {
		emb, err := a.embedder.Embed(ctx, doc.Content)
		if err != nil {
			a.logger.Warn("embedding failed, indexing without vector",
				zap.String("path", doc.Path), zap.Error(err))
		} else {
			doc.Embedding = emb
		}
	}
	return a.store.Upsert(ctx, doc)
}

// retryOrDrop requeues transient failures and skips permanent ones. A
// rebuild in flight is always transient.
func (a *Applier) retryOrDrop(entry *models.ChangeEntry, err error) {
	if errors.Is(err, store.ErrRebuilding) {
		entry.Retries-- // rebuilds don't count against the retry budget
	}
	if !a.buffer.Requeue(entry) {
		return
	}
	a.logger.Warn("change apply failed, requeued",
		zap.String("path", entry.Path),
		zap.String("kind", string(entry.Kind)),
		zap.Int("retries", entry.Retries),
		zap.Error(err))
}
