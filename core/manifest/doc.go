// Package manifest defines the book manifest schema shared by the asset
// pipeline (producer) and the books service (consumer), along with atomic
// persistence and schema validation.
//
// The manifest is a single JSON document enumerating all books and their
// pages. Writes go through a temp-file-then-rename so a concurrent reader
// never observes a partially written document. Reads validate the schema
// wholesale before any entry is exposed to callers.
package manifest
