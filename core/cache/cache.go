package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// Metrics is a snapshot of the cache's cumulative counters.
type Metrics struct {
	Hits        int64     `json:"hits"`
	Misses      int64     `json:"misses"`
	HitRate     float64   `json:"hitRate"`
	MissRate    float64   `json:"missRate"`
	MemoryBytes int64     `json:"memoryBytes"`
	Entries     int       `json:"entries"`
	Oldest      time.Time `json:"oldest,omitempty"`
	Newest      time.Time `json:"newest,omitempty"`
}

// Cache is the tiered key-value cache: an LRU-bounded memory tier, a
// durable key-value tier, and a large-object blob tier. All tiers share
// TTL semantics; the memory tier alone enforces the byte budget.
type Cache struct {
	cfg    Config
	logger *zap.Logger

	mu  sync.Mutex
	mem *memoryStore

	kv   *kvStore  // nil when the persistent tier is unavailable
	blob BlobStore // nil when no blob tier is configured

	hits   int64
	misses int64

	sf   singleflight.Group
	stop chan struct{}
	once sync.Once

	// clock is swappable in tests.
	clock func() time.Time
}

// Option customizes cache construction.
type Option func(*Cache)

// WithBlobStore injects a large-object tier.
func WithBlobStore(b BlobStore) Option {
	return func(c *Cache) { c.blob = b }
}

// WithClock replaces the time source. Used by tests to force expiry.
func WithClock(clock func() time.Time) Option {
	return func(c *Cache) { c.clock = clock }
}

// New creates a tiered cache. db may be nil, in which case the cache
// degrades to the memory tier (plus blob tier when configured) and logs
// the downgrade once instead of failing.
func New(cfg Config, db *gorm.DB, logger *zap.Logger, opts ...Option) (*Cache, error) {
	c := &Cache{
		cfg:    cfg,
		logger: logger,
		mem:    newMemoryStore(cfg.MaxMemoryBytes),
		stop:   make(chan struct{}),
		clock:  time.Now,
	}

	if cfg.Persistent && db != nil {
		kv, err := newKVStore(db)
		if err != nil {
			logger.Warn("Persistent cache tier unavailable", zap.Error(err))
		} else {
			c.kv = kv
		}
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.blob == nil && cfg.BlobDir != "" {
		blob, err := NewFSBlobStore(cfg.BlobDir)
		if err != nil {
			logger.Warn("Blob cache tier unavailable", zap.Error(err))
		} else {
			c.blob = blob
		}
	}

	if cfg.SweepIntervalSeconds > 0 {
		go c.sweepLoop(time.Duration(cfg.SweepIntervalSeconds) * time.Second)
	}

	return c, nil
}

// DefaultTTL returns the configured default entry lifetime.
func (c *Cache) DefaultTTL() time.Duration {
	return time.Duration(c.cfg.DefaultTTLSeconds) * time.Second
}

// Set serializes the value and writes it through the tiers. The memory
// tier evicts by LRU until the byte budget holds; an entry larger than
// the entire budget skips memory and lands in the durable tiers only.
// Durable-tier failures are logged, never propagated.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to serialize cache value: %w", err)
	}
	if ttl <= 0 {
		ttl = c.DefaultTTL()
	}

	e := Entry{
		Data:      data,
		Timestamp: c.clock(),
		TTL:       ttl,
		Size:      int64(len(data)),
	}

	c.mu.Lock()
	evicted, stored := c.mem.set(key, e)
	c.mu.Unlock()

	if !stored {
		c.logger.Debug("Cache entry exceeds memory budget, persisting to durable tiers only",
			zap.String("key", key), zap.Int64("size", e.Size))
	}
	for _, victim := range evicted {
		c.logger.Debug("Evicted cache entry", zap.String("key", victim))
	}

	if c.kv != nil {
		if err := c.kv.set(key, e); err != nil {
			c.logger.Warn("Failed to write cache entry to persistent tier",
				zap.String("key", key), zap.Error(err))
		}
	}

	if c.blob != nil && e.Size >= c.cfg.BlobThresholdBytes {
		go func() {
			if err := c.blob.Put(context.Background(), key, e); err != nil {
				c.logger.Warn("Failed to write cache entry to blob tier",
					zap.String("key", key), zap.Error(err))
			}
		}()
	}

	return nil
}

// Get looks the key up tier by tier: memory (promoting recency), then
// the key-value tier (repopulating memory), then the blob tier. An entry
// past its TTL counts as a miss and is deleted from every tier.
// On a hit the value is unmarshaled into dest.
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	now := c.clock()

	c.mu.Lock()
	if e, ok := c.mem.get(key); ok {
		if e.Expired(now) {
			c.mu.Unlock()
			c.expire(ctx, key)
			return false, nil
		}
		data := e.Data
		c.hits++
		c.mu.Unlock()
		return true, json.Unmarshal(data, dest)
	}
	c.mu.Unlock()

	if e, ok := c.lookupDurable(ctx, key); ok {
		if e.Expired(now) {
			c.expire(ctx, key)
			return false, nil
		}
		c.mu.Lock()
		c.mem.set(key, *e)
		c.hits++
		c.mu.Unlock()
		return true, json.Unmarshal(e.Data, dest)
	}

	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
	return false, nil
}

func (c *Cache) lookupDurable(ctx context.Context, key string) (*Entry, bool) {
	if c.kv != nil {
		e, ok, err := c.kv.get(key)
		if err != nil {
			c.logger.Warn("Persistent cache tier read failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			return e, true
		}
	}
	if c.blob != nil {
		e, ok, err := c.blob.Get(ctx, key)
		if err != nil {
			c.logger.Warn("Blob cache tier read failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			return e, true
		}
	}
	return nil, false
}

// GetOrLoad returns the cached value for key, or invokes load exactly
// once for concurrent callers (singleflight), caches the result with the
// given TTL, and unmarshals it into dest.
func (c *Cache) GetOrLoad(ctx context.Context, key string, ttl time.Duration, dest any, load func(context.Context) (any, error)) error {
	if ok, err := c.Get(ctx, key, dest); err != nil {
		return err
	} else if ok {
		return nil
	}

	data, err, _ := c.sf.Do(key, func() (any, error) {
		// Double-check after winning the flight; a concurrent loader
		// may have populated the key already.
		var raw json.RawMessage
		if ok, err := c.Get(ctx, key, &raw); err == nil && ok {
			return []byte(raw), nil
		}

		value, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.Set(ctx, key, value, ttl); err != nil {
			return nil, err
		}
		return json.Marshal(value)
	})
	if err != nil {
		return err
	}
	b, _ := data.([]byte)
	return json.Unmarshal(b, dest)
}

// expire deletes a stale key from every tier and records the miss.
func (c *Cache) expire(ctx context.Context, key string) {
	c.Delete(ctx, key)
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
}

// Delete removes the key from all tiers. Unavailable tiers are skipped.
func (c *Cache) Delete(ctx context.Context, key string) {
	c.mu.Lock()
	c.mem.delete(key)
	c.mu.Unlock()

	if c.kv != nil {
		if err := c.kv.delete(key); err != nil {
			c.logger.Warn("Persistent cache tier delete failed", zap.String("key", key), zap.Error(err))
		}
	}
	if c.blob != nil {
		if err := c.blob.Delete(ctx, key); err != nil {
			c.logger.Warn("Blob cache tier delete failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// Clear empties all tiers.
func (c *Cache) Clear(ctx context.Context) {
	c.mu.Lock()
	c.mem.clear()
	c.mu.Unlock()

	if c.kv != nil {
		if err := c.kv.clear(); err != nil {
			c.logger.Warn("Persistent cache tier clear failed", zap.Error(err))
		}
	}
	if c.blob != nil {
		if err := c.blob.Clear(ctx); err != nil {
			c.logger.Warn("Blob cache tier clear failed", zap.Error(err))
		}
	}
}

// Metrics returns a snapshot of the cumulative counters and the memory
// tier's current occupancy.
func (c *Cache) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := Metrics{
		Hits:        c.hits,
		Misses:      c.misses,
		MemoryBytes: c.mem.bytes(),
		Entries:     c.mem.len(),
	}
	if total := c.hits + c.misses; total > 0 {
		m.HitRate = float64(c.hits) / float64(total)
		m.MissRate = float64(c.misses) / float64(total)
	}
	m.Oldest, m.Newest = c.mem.bounds()
	return m
}

// Close stops the background sweep. Safe to call more than once.
func (c *Cache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *Cache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

// Sweep removes every expired entry from the memory tier and mirrors the
// deletions to the durable tiers. It bounds growth from write-only keys
// that are never read again.
func (c *Cache) Sweep() int {
	now := c.clock()

	c.mu.Lock()
	expired := c.mem.sweep(now)
	c.mu.Unlock()

	for _, key := range expired {
		if c.kv != nil {
			_ = c.kv.delete(key)
		}
		if c.blob != nil {
			_ = c.blob.Delete(context.Background(), key)
		}
	}
	return len(expired)
}
