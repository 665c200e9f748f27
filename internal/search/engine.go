package search

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Dry-U/File-tools/internal/config"
	"github.com/Dry-U/File-tools/internal/embedding"
	"github.com/Dry-U/File-tools/internal/keyword"
	"github.com/Dry-U/File-tools/internal/models"
	"github.com/Dry-U/File-tools/internal/store"
)

// Engine runs hybrid (keyword + vector) retrieval over the store. A nil or
// failed embedder degrades the engine to keyword-only rather than failing
// queries; Degraded is set on responses served that way.
type Engine struct {
	store    *store.Store
	embedder embedding.Embedder
	cfg      *config.SearchConfig
	cache    *resultCache
	logger   *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates a search engine. embedder may be nil for keyword-only
// operation.
func NewEngine(st *store.Store, embedder embedding.Embedder, cfg *config.SearchConfig, opts ...Option) *Engine {
	e := &Engine{
		store:    st,
		embedder: embedder,
		cfg:      cfg,
		logger:   zap.NewNop(),
	}
	if cfg.CacheEnabled {
		e.cache = newResultCache(cfg.CacheSize, time.Duration(cfg.CacheTTLSeconds)*time.Second)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// InvalidateCache drops all cached responses. Called after rebuilds.
func (e *Engine) InvalidateCache() {
	if e.cache != nil {
		e.cache.purge()
	}
}

// Search runs both branches in parallel, fuses the evidence, and returns the
// top results.
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	if err := query.Validate(e.cfg.DefaultLimit, e.cfg.MaxResults); err != nil {
		return nil, err
	}

	if e.cache != nil {
		if cached, ok := e.cache.get(cacheKey(query)); ok {
			return cached, nil
		}
	}

	searchText, impliedTypes := DetectFileTypes(query.Query)
	filters := query.Filters
	if len(impliedTypes) > 0 {
		if filters == nil {
			filters = &models.SearchFilters{}
		}
		if len(filters.FileTypes) == 0 {
			filters.FileTypes = impliedTypes
		}
	}

	textWeight, vectorWeight := e.resolveWeights(query)

	candidates := query.Limit * e.cfg.Oversample
	if candidates < query.Limit {
		candidates = query.Limit
	}

	var (
		kwHits   []*keyword.Result
		vecHits  []*store.VectorHit
		degraded bool
	)
	g, gctx := errgroup.WithContext(ctx)
	if textWeight > 0 {
		g.Go(func() error {
			hits, err := e.store.SearchKeyword(gctx, searchText, candidates)
			if err != nil {
				return err
			}
			kwHits = hits
			return nil
		})
	}
	if vectorWeight > 0 && e.embedder != nil {
		g.Go(func() error {
			emb, err := e.embedder.Embed(gctx, searchText)
			if err != nil {
				// Vector branch unavailable: keep serving keyword results.
				e.logger.Warn("embedding failed, degrading to keyword-only", zap.Error(err))
				degraded = true
				return nil
			}
			hits, err := e.store.SearchVector(gctx, emb, candidates)
			if err != nil {
				e.logger.Warn("vector search failed, degrading to keyword-only", zap.Error(err))
				degraded = true
				return nil
			}
			vecHits = hits
			return nil
		})
	} else if vectorWeight > 0 {
		degraded = true
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fused := Fuse(e.collect(ctx, kwHits, vecHits, filters), FusionParams{
		Query:             searchText,
		TextWeight:        textWeight,
		VectorWeight:      vectorWeight,
		HybridBoost:       e.cfg.HybridBoost,
		FilenameBoost:     e.cfg.FilenameBoost,
		CharOverlapWeight: e.cfg.CharOverlapWeight,
	})

	minScore := query.MinScore
	if minScore <= 0 {
		minScore = e.cfg.MinScore
	}

	response := &models.SearchResponse{
		Results:  make([]*models.SearchResult, 0, query.Limit),
		Query:    query.Query,
		Degraded: degraded,
	}
	for _, f := range fused {
		if f.Score < minScore {
			continue
		}
		response.Total++
		if len(response.Results) >= query.Limit {
			continue
		}
		doc, err := e.store.GetDocument(ctx, f.Path)
		if err != nil {
			continue
		}
		response.Results = append(response.Results, &models.SearchResult{
			Path:        doc.Path,
			Filename:    doc.Filename,
			Score:       f.Score,
			TextScore:   f.TextScore,
			VectorScore: f.VectorScore,
			Snippet:     Snippet(doc.Content, searchText, e.cfg.SnippetLength),
			FileType:    doc.FileType,
			Size:        doc.Size,
			ModifiedAt:  doc.ModifiedAt,
			Source:      f.Source,
		})
	}
	response.QueryTime = time.Since(startTime).Milliseconds()

	if e.cache != nil {
		e.cache.set(cacheKey(query), response)
	}
	return response, nil
}

// resolveWeights picks per-request weights over config defaults and
// renormalizes them: both zero falls back to config, a single zero gives the
// other branch full weight, anything else is scaled to sum to 1.
func (e *Engine) resolveWeights(query *models.SearchQuery) (float64, float64) {
	tw, vw := query.TextWeight, query.VectorWeight
	if tw == 0 && vw == 0 {
		tw, vw = e.cfg.TextWeight, e.cfg.VectorWeight
	}
	switch {
	case tw == 0:
		vw = 1.0
	case vw == 0:
		tw = 1.0
	default:
		total := tw + vw
		tw, vw = tw/total, vw/total
	}
	return tw, vw
}

// collect merges branch hits into per-path candidates, loading catalog
// records once per path and applying metadata filters.
func (e *Engine) collect(ctx context.Context, kwHits []*keyword.Result, vecHits []*store.VectorHit, filters *models.SearchFilters) []*Candidate {
	byPath := make(map[string]*Candidate)
	order := make([]string, 0, len(kwHits)+len(vecHits))

	lookup := func(path string) *Candidate {
		if c, ok := byPath[path]; ok {
			return c
		}
		doc, err := e.store.GetDocument(ctx, path)
		if err != nil {
			return nil
		}
		if !filters.Match(doc) {
			byPath[path] = nil
			return nil
		}
		c := &Candidate{
			Path:     path,
			Filename: strings.ReplaceAll(doc.Filename, "_", " "),
			Content:  doc.Content,
		}
		byPath[path] = c
		order = append(order, path)
		return c
	}

	for _, hit := range kwHits {
		if c := lookup(hit.Path); c != nil {
			c.Text = hit.Score
			c.HasText = true
		}
	}
	for _, hit := range vecHits {
		if c := lookup(hit.Path); c != nil {
			c.Vector = hit.Score
			c.HasVec = true
		}
	}

	candidates := make([]*Candidate, 0, len(order))
	for _, path := range order {
		if c := byPath[path]; c != nil {
			candidates = append(candidates, c)
		}
	}
	return candidates
}
