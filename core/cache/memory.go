package cache

import (
	"container/list"
	"time"
)

// memoryStore is the LRU-bounded in-memory tier. It is not safe for
// concurrent use on its own; Cache serializes access under its mutex.
type memoryStore struct {
	maxBytes int64
	curBytes int64
	order    *list.List // front = most recently used
	items    map[string]*list.Element
}

type memItem struct {
	key   string
	entry Entry
}

func newMemoryStore(maxBytes int64) *memoryStore {
	return &memoryStore{
		maxBytes: maxBytes,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

// get returns the entry and promotes its recency.
func (m *memoryStore) get(key string) (*Entry, bool) {
	el, ok := m.items[key]
	if !ok {
		return nil, false
	}
	m.order.MoveToFront(el)
	return &el.Value.(*memItem).entry, true
}

// set inserts or replaces an entry, evicting least-recently-used entries
// until the byte budget holds. It returns the evicted keys and whether
// the entry was stored at all: an entry larger than the whole budget is
// rejected rather than flushing the tier.
func (m *memoryStore) set(key string, e Entry) (evicted []string, stored bool) {
	if e.Size > m.maxBytes {
		// The key may hold an older, smaller value; a stale entry must
		// not shadow the durable tiers that do receive the new one.
		m.delete(key)
		return nil, false
	}

	if el, ok := m.items[key]; ok {
		old := el.Value.(*memItem)
		m.curBytes -= old.entry.Size
		old.entry = e
		m.curBytes += e.Size
		m.order.MoveToFront(el)
	} else {
		el := m.order.PushFront(&memItem{key: key, entry: e})
		m.items[key] = el
		m.curBytes += e.Size
	}

	for m.curBytes > m.maxBytes {
		back := m.order.Back()
		if back == nil {
			break
		}
		victim := back.Value.(*memItem)
		if victim.key == key {
			break
		}
		m.removeElement(back)
		evicted = append(evicted, victim.key)
	}
	return evicted, true
}

func (m *memoryStore) delete(key string) {
	if el, ok := m.items[key]; ok {
		m.removeElement(el)
	}
}

func (m *memoryStore) clear() {
	m.order.Init()
	m.items = make(map[string]*list.Element)
	m.curBytes = 0
}

// sweep removes every expired entry and returns their keys.
func (m *memoryStore) sweep(now time.Time) []string {
	var expired []string
	for key, el := range m.items {
		if el.Value.(*memItem).entry.Expired(now) {
			expired = append(expired, key)
		}
	}
	for _, key := range expired {
		m.delete(key)
	}
	return expired
}

func (m *memoryStore) removeElement(el *list.Element) {
	item := el.Value.(*memItem)
	m.order.Remove(el)
	delete(m.items, item.key)
	m.curBytes -= item.entry.Size
}

func (m *memoryStore) len() int {
	return len(m.items)
}

func (m *memoryStore) bytes() int64 {
	return m.curBytes
}

// bounds returns the oldest and newest entry timestamps.
func (m *memoryStore) bounds() (oldest, newest time.Time) {
	for _, el := range m.items {
		ts := el.Value.(*memItem).entry.Timestamp
		if oldest.IsZero() || ts.Before(oldest) {
			oldest = ts
		}
		if ts.After(newest) {
			newest = ts
		}
	}
	return oldest, newest
}
