// Package imageload implements the progressive image loader: it resolves
// a source URL to a displayable image while optimizing for perceived load
// time and bandwidth.
//
// # Resolution
//
// A load optionally probes for a sibling asset in a more modern format
// (webp next to jpg) and applies a quality tier. The adaptive tier maps
// the estimated network conditions to low, medium or high through a
// configurable policy; the tier translates into width and quality URL
// parameters understood by the asset server.
//
// # Reliability
//
// Each attempt is bounded by a timeout; failures retry with exponential
// backoff up to a configured count before the terminal error surfaces.
// Identical concurrent requests coalesce through singleflight, and
// finished loads are kept in a small entry-bounded LRU with TTL.
//
// # Lazy loading
//
// LazyLoader defers loads until a visibility observer reports the anchor
// on screen. Registrations fire exactly once and are released afterwards
// or on cancel, so no observer outlives its consumer.
package imageload
