// Package dedupe tracks identifiers that were already handled.
//
// Deduper is the generic seen-set. DayCache layers the per (user, metric, day)
// prefetch discipline of the sync loop on top of it.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
)

// Deduper records seen IDs to ensure at-most-once handling.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord removes an ID from the seen list, allowing it to be retried.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// inMemoryDeduper implements Deduper with a map. In bounded mode the oldest
// entry is evicted once maxSize is reached.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List // front = most recently added
	maxSize int        // 0 or negative = unbounded
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 50000,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

// SeenAndRecord atomically checks if id was seen and records it if not.
func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[id]; exists {
		return true
	}

	if d.maxSize > 0 && len(d.seen) >= d.maxSize {
		d.evictOldest()
	}

	d.seen[id] = d.order.PushFront(id)
	d.size.Add(1)
	return false
}

// Unrecord removes an ID from the seen list, allowing it to be retried.
func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, exists := d.seen[id]; exists {
		d.order.Remove(el)
		delete(d.seen, id)
		d.size.Add(-1)
	}
}

// evictOldest removes the least recently added entry.
// Must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	el := d.order.Back()
	if el == nil {
		return
	}
	d.order.Remove(el)
	delete(d.seen, el.Value.(string))
	d.size.Add(-1)
}

// Size returns the current number of entries in the deduper.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
