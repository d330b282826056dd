package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Version is the manifest schema version written by the pipeline.
const Version = "1.0.0"

// SrcSet holds the per-format variant lists of a responsive image,
// as comma-separated "url WIDTHw" descriptors.
type SrcSet struct {
	WebP     string `json:"webp"`
	Original string `json:"original"`
}

// ResponsiveImage describes one source image together with its derived
// variants. It is produced once by the pipeline and never mutated.
type ResponsiveImage struct {
	Src         string  `json:"src" validate:"required"`
	SrcSet      SrcSet  `json:"srcSet"`
	Alt         string  `json:"alt"`
	Width       int     `json:"width" validate:"gt=0"`
	Height      int     `json:"height" validate:"gt=0"`
	LQIP        string  `json:"lqip"`
	AspectRatio float64 `json:"aspectRatio"`
}

// Page is one image page of a book. PageNumber is 1-based and dense
// within a book.
type Page struct {
	ID          string          `json:"id" validate:"required"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Image       ResponsiveImage `json:"image"`
	PageNumber  int             `json:"pageNumber" validate:"gt=0"`
}

// BookMeta holds the optional baby-book specific metadata of an entry.
type BookMeta struct {
	BabyName  string `json:"babyName,omitempty"`
	BirthDate string `json:"birthDate,omitempty"`
	Parents   string `json:"parents,omitempty"`
}

// BookEntry is the lightweight listing record for one book.
type BookEntry struct {
	ID           string    `json:"id" validate:"required"`
	Title        string    `json:"title" validate:"required"`
	Description  string    `json:"description"`
	Author       string    `json:"author,omitempty"`
	CoverImage   string    `json:"coverImage,omitempty"`
	TotalPages   int       `json:"totalPages" validate:"gt=0"`
	LastModified time.Time `json:"lastModified"`
	CreatedAt    time.Time `json:"createdAt,omitempty"`
	Tags         []string  `json:"tags"`
	Metadata     BookMeta  `json:"metadata"`
}

// Book is a full manifest record: the listing entry plus its pages.
type Book struct {
	BookEntry
	Pages []Page `json:"pages" validate:"dive"`
}

// Manifest is the single document enumerating all books, written by the
// pipeline and consumed by the books service.
type Manifest struct {
	Books       []Book    `json:"books" validate:"dive"`
	GeneratedAt time.Time `json:"generatedAt"`
	Version     string    `json:"version" validate:"required"`
}

// FileName is the manifest file name inside the output directory.
const FileName = "books-manifest.json"

// Write marshals the manifest and writes it atomically: the document is
// written to a temp file in the same directory and renamed over the
// target, so a concurrent reader never observes a partial manifest.
func Write(path string, m *Manifest) error {
	return WriteAtomic(path, m)
}

// WriteAtomic marshals any document as indented JSON and replaces the
// target through a temp-file-then-rename.
func WriteAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".manifest-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp manifest: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp manifest: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace manifest: %w", err)
	}
	return nil
}

// Read loads and validates a manifest from disk.
func Read(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	if err := Validate(&m); err != nil {
		return nil, err
	}
	return &m, nil
}
