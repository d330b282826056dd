// Package books implements the book data feature.
//
// It serves the manifest produced by the pipeline as a typed read API:
// listings with filtering, sorting and pagination, per-book detail and
// page documents, tag enumeration and free-text search. The manifest is
// held behind a short-TTL entry in the tiered cache so repeated requests
// within the window never touch the backing source.
//
// # Sources
//
// Two backings implement the Source interface:
//   - FileSource: the pipeline's local output directory.
//   - StorageSource: a published S3/MinIO bucket.
//
// # Components
//
//   - Service: Loads, caches and queries the manifest.
//   - Handler: Exposes the HTTP endpoints.
//   - Feature: Registers the feature with the application.
//
// # HTTP Endpoints
//
//   - GET /books               : Filtered, sorted, paginated listing.
//   - GET /books/:id           : One book with its pages.
//   - GET /books/:id/pages     : Page documents of one book.
//   - POST /books/:id/preload  : Warm the image loader with a book's assets.
//   - GET /tags                : Sorted union of all tags.
//   - GET /search?q=...        : Free-text search.
//   - GET /manifest            : The raw manifest (force=true refreshes).
package books
