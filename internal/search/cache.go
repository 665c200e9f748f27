package search

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/Dry-U/File-tools/internal/models"
)

// resultCache is an LRU cache for search responses with per-entry TTL.
// Writes invalidate nothing: entries simply age out, so a hit may be up to
// one TTL behind the indexes.
type resultCache struct {
	capacity int
	ttl      time.Duration
	mu       sync.Mutex
	entries  map[string]*list.Element
	lru      *list.List
	now      func() time.Time
}

type resultEntry struct {
	key      string
	response *models.SearchResponse
	expires  time.Time
}

func newResultCache(capacity int, ttl time.Duration) *resultCache {
	return &resultCache{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[string]*list.Element),
		lru:      list.New(),
		now:      time.Now,
	}
}

// cacheKey derives a stable key from everything that affects the result set.
func cacheKey(query *models.SearchQuery) string {
	data, _ := json.Marshal(query)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (c *resultCache) get(key string) (*models.SearchResponse, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*resultEntry)
	if c.now().After(entry.expires) {
		c.lru.Remove(elem)
		delete(c.entries, key)
		return nil, false
	}
	c.lru.MoveToFront(elem)
	return entry.response, true
}

func (c *resultCache) set(key string, response *models.SearchResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*resultEntry)
		entry.response = response
		entry.expires = c.now().Add(c.ttl)
		c.lru.MoveToFront(elem)
		return
	}
	elem := c.lru.PushFront(&resultEntry{key: key, response: response, expires: c.now().Add(c.ttl)})
	c.entries[key] = elem
	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		if oldest != nil {
			c.lru.Remove(oldest)
			delete(c.entries, oldest.Value.(*resultEntry).key)
		}
	}
}

func (c *resultCache) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.lru.Init()
}
