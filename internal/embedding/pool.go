package embedding

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// PooledEmbedder fans EmbedBatch out over a fixed goroutine pool. Single
// Embed calls pass straight through. It wraps any Embedder, so batches hit
// the underlying cache concurrently without unbounded goroutine growth.
type PooledEmbedder struct {
	inner Embedder
	pool  *ants.Pool
}

// NewPooledEmbedder wraps inner with a worker pool of the given size.
func NewPooledEmbedder(inner Embedder, workers int) (*PooledEmbedder, error) {
	if workers <= 0 {
		workers = 4
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding pool: %w", err)
	}
	return &PooledEmbedder{inner: inner, pool: pool}, nil
}

// Embed delegates to the wrapped embedder.
func (p *PooledEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return p.inner.Embed(ctx, text)
}

// EmbedBatch embeds texts concurrently, preserving input order. The first
// error wins; remaining work still runs to completion before it is returned.
func (p *PooledEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	errs := make([]error, len(texts))

	var wg sync.WaitGroup
	for i, text := range texts {
		i, text := i, text
		wg.Add(1)
		if err := p.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				errs[i] = ctx.Err()
				return
			}
			embeddings[i], errs[i] = p.inner.Embed(ctx, text)
		}); err != nil {
			wg.Done()
			errs[i] = fmt.Errorf("submit embedding task: %w", err)
		}
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return embeddings, nil
}

// Dimensions returns the wrapped embedder's dimension.
func (p *PooledEmbedder) Dimensions() int {
	return p.inner.Dimensions()
}

// Close releases the pool and the wrapped embedder.
func (p *PooledEmbedder) Close() error {
	p.pool.Release()
	return p.inner.Close()
}
