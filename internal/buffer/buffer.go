// Package buffer provides the change buffer that coalesces file-change
// notifications and releases them in bounded batches.
package buffer

import (
	"container/list"
	"sync"
	"time"

	"github.com/Dry-U/File-tools/internal/models"
	"go.uber.org/zap"
)

// Buffer absorbs a bursty stream of change entries and converts it into
// infrequent bounded-size batches. Entries coalesce by path: a later entry
// supersedes an earlier one for the same path (last-event-wins by timestamp).
// Producers never block; at capacity the oldest entry is evicted and counted.
type Buffer struct {
	capacity       int
	flushThreshold int
	maxAge         time.Duration
	maxRetries     int

	mu        sync.Mutex
	entries   map[string]*list.Element // path -> element holding *models.ChangeEntry
	order     *list.List               // front = oldest, back = newest
	lastFlush time.Time
	dropped   uint64
	discarded uint64
	logger    *zap.Logger
}

// Option configures a Buffer.
type Option func(*Buffer)

// WithLogger sets a logger for eviction and discard events.
func WithLogger(l *zap.Logger) Option {
	return func(b *Buffer) { b.logger = l }
}

// New creates a buffer with the given bounds. flushThreshold must not exceed
// capacity (validated by config before construction).
func New(capacity, flushThreshold int, maxAge time.Duration, maxRetries int, opts ...Option) *Buffer {
	b := &Buffer{
		capacity:       capacity,
		flushThreshold: flushThreshold,
		maxAge:         maxAge,
		maxRetries:     maxRetries,
		entries:        make(map[string]*list.Element),
		order:          list.New(),
		lastFlush:      time.Now(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Enqueue inserts or coalesces entry by path. An entry older than the one
// already buffered for the same path is ignored; otherwise it replaces it and
// moves to the newest position. At capacity the oldest entry is evicted.
func (b *Buffer) Enqueue(entry *models.ChangeEntry) {
	if entry == nil || entry.Path == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if elem, ok := b.entries[entry.Path]; ok {
		existing := elem.Value.(*models.ChangeEntry)
		if entry.Timestamp.Before(existing.Timestamp) {
			return
		}
		elem.Value = entry
		b.order.MoveToBack(elem)
		return
	}

	if b.order.Len() >= b.capacity {
		oldest := b.order.Front()
		if oldest != nil {
			evicted := oldest.Value.(*models.ChangeEntry)
			b.order.Remove(oldest)
			delete(b.entries, evicted.Path)
			b.dropped++
			if b.logger != nil {
				b.logger.Warn("change buffer full, evicting oldest entry",
					zap.String("path", evicted.Path),
					zap.Uint64("dropped_total", b.dropped))
			}
		}
	}
	b.entries[entry.Path] = b.order.PushBack(entry)
}

// ShouldFlush reports whether the buffered count has reached the flush
// threshold or the time since the last flush exceeds the configured age.
// The dual trigger bounds both worst-case memory and worst-case staleness.
func (b *Buffer) ShouldFlush() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.order.Len() >= b.flushThreshold {
		return true
	}
	return b.order.Len() > 0 && time.Since(b.lastFlush) > b.maxAge
}

// Drain atomically removes and returns the current batch, oldest first,
// leaving the buffer empty and resetting the flush clock.
func (b *Buffer) Drain() []*models.ChangeEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	batch := make([]*models.ChangeEntry, 0, b.order.Len())
	for elem := b.order.Front(); elem != nil; elem = elem.Next() {
		batch = append(batch, elem.Value.(*models.ChangeEntry))
	}
	b.entries = make(map[string]*list.Element)
	b.order.Init()
	b.lastFlush = time.Now()
	return batch
}

// Requeue puts a failed entry back for retry. Returns false when the entry
// has exhausted its retries and was discarded instead; the caller surfaces
// the loss. A newer entry already buffered for the same path wins.
func (b *Buffer) Requeue(entry *models.ChangeEntry) bool {
	entry.Retries++
	if entry.Retries > b.maxRetries {
		b.mu.Lock()
		b.discarded++
		b.mu.Unlock()
		if b.logger != nil {
			b.logger.Error("discarding change entry after repeated apply failures",
				zap.String("path", entry.Path),
				zap.String("kind", string(entry.Kind)),
				zap.Int("retries", entry.Retries-1))
		}
		return false
	}
	b.Enqueue(entry)
	return true
}

// Len returns the number of buffered entries.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.order.Len()
}

// Stats reports buffer counters.
type Stats struct {
	Buffered  int    `json:"buffered"`
	Dropped   uint64 `json:"dropped"`
	Discarded uint64 `json:"discarded"`
}

// Stats returns a snapshot of the buffer counters.
func (b *Buffer) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{Buffered: b.order.Len(), Dropped: b.dropped, Discarded: b.discarded}
}
