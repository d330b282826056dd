package imageload

import (
	"container/list"
	"sync"
	"time"
)

// resultCache is a small entry-count-bounded LRU with TTL for finished
// load results. It is deliberately separate from the tiered cache: load
// results are tiny, per-process, and never worth persisting.
type resultCache struct {
	mu      sync.Mutex
	max     int
	ttl     time.Duration
	order   *list.List
	entries map[string]*list.Element
}

type resultEntry struct {
	key    string
	result Result
	stored time.Time
}

func newResultCache(max int, ttl time.Duration) *resultCache {
	return &resultCache{
		max:     max,
		ttl:     ttl,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

func (c *resultCache) get(key string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return Result{}, false
	}
	e := el.Value.(*resultEntry)
	if c.ttl > 0 && time.Since(e.stored) > c.ttl {
		c.order.Remove(el)
		delete(c.entries, key)
		return Result{}, false
	}
	c.order.MoveToFront(el)
	return e.result, true
}

func (c *resultCache) put(key string, r Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*resultEntry).result = r
		el.Value.(*resultEntry).stored = time.Now()
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&resultEntry{key: key, result: r, stored: time.Now()})
	c.entries[key] = el

	for c.order.Len() > c.max {
		back := c.order.Back()
		if back == nil {
			break
		}
		delete(c.entries, back.Value.(*resultEntry).key)
		c.order.Remove(back)
	}
}

func (c *resultCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
