// Package pipeline implements the build-time asset pipeline: it scans a
// root directory of book folders, derives responsive image variants, and
// writes the book manifest.
//
// # Scanning
//
// Every sub-folder of the root is one book candidate. Image files are
// discovered non-recursively with case-insensitive extension matching.
// Optional metadata.json (or metadata.yaml) supplies title, description,
// tags and an explicit page order; optional sidecar markdown files supply
// per-page titles, alt text and descriptions. Everything falls back to
// folder-derived defaults, so a bare folder of photos is a valid book.
//
// # Determinism
//
// Page ordering and slug disambiguation are total orders independent of
// filesystem enumeration, and manifest entries are sorted by title, so
// re-running the pipeline on unchanged inputs reproduces the same output
// apart from the generatedAt timestamp.
//
// # Failure isolation
//
// Images are processed concurrently with isolated failure domains: a
// corrupt image drops that page, logs a warning, and leaves its siblings
// untouched. A book with nothing processable is skipped with a warning.
// Only output-level failures (unwritable directory, manifest write) abort
// the run.
package pipeline
