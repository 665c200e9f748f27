package search

import (
	"testing"
	"time"

	"github.com/Dry-U/File-tools/internal/models"
)

func TestResultCacheHitAndTTL(t *testing.T) {
	c := newResultCache(10, time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	key := cacheKey(&models.SearchQuery{Query: "alpha", Limit: 10})
	if _, ok := c.get(key); ok {
		t.Fatal("expected miss on empty cache")
	}
	c.set(key, &models.SearchResponse{Query: "alpha", Total: 3})

	got, ok := c.get(key)
	if !ok || got.Total != 3 {
		t.Fatalf("expected hit, got %v %v", got, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.get(key); ok {
		t.Error("entry should expire after TTL")
	}
}

func TestResultCacheKeyDistinguishesRequests(t *testing.T) {
	a := cacheKey(&models.SearchQuery{Query: "alpha", Limit: 10})
	b := cacheKey(&models.SearchQuery{Query: "alpha", Limit: 20})
	c := cacheKey(&models.SearchQuery{Query: "alpha", Limit: 10, TextWeight: 0.9, VectorWeight: 0.1})
	if a == b || a == c {
		t.Error("cache key must cover limit and weights")
	}
}

func TestResultCacheEviction(t *testing.T) {
	c := newResultCache(2, time.Minute)
	k1 := cacheKey(&models.SearchQuery{Query: "one"})
	k2 := cacheKey(&models.SearchQuery{Query: "two"})
	k3 := cacheKey(&models.SearchQuery{Query: "three"})
	c.set(k1, &models.SearchResponse{})
	c.set(k2, &models.SearchResponse{})
	c.set(k3, &models.SearchResponse{})
	if _, ok := c.get(k1); ok {
		t.Error("oldest entry should be evicted")
	}
	if _, ok := c.get(k3); !ok {
		t.Error("newest entry should remain")
	}
}

func TestResultCachePurge(t *testing.T) {
	c := newResultCache(10, time.Minute)
	key := cacheKey(&models.SearchQuery{Query: "alpha"})
	c.set(key, &models.SearchResponse{})
	c.purge()
	if _, ok := c.get(key); ok {
		t.Error("purge should drop all entries")
	}
}
