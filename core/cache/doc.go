// Package cache provides the tiered key-value cache used across Baby Book
// to memoize JSON-serializable payloads: the manifest, per-book records,
// and image loader results.
//
// # Tiers
//
// Three backing stores of increasing capacity and latency:
//
//  1. Memory: LRU-bounded by a byte budget. Eviction is strict
//     least-recently-used, tracked through a recency list.
//  2. Key-value: a cache_entries table in an embedded SQLite database
//     (or MySQL for shared deployments). Write failures degrade the
//     cache instead of surfacing to callers.
//  3. Blob: a content-addressed store (filesystem directory or an
//     object-storage bucket) that additionally receives entries above a
//     size threshold, written asynchronously.
//
// # Expiry
//
// Every entry carries a TTL. Reads treat an aged-out entry as a miss and
// delete it from all tiers; a background sweep additionally reaps expired
// memory entries so write-only keys cannot accumulate.
//
// # Coalescing
//
// GetOrLoad wraps the read-through path in a singleflight group so
// concurrent callers of the same key share one load.
package cache
