package books

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"babybook/core/manifest"
	"babybook/core/storage"

	"github.com/minio/minio-go/v7"
)

// Source provides the manifest and per-book page documents. The
// pipeline's output directory is the usual backing; published buckets
// are served through the object-storage source.
type Source interface {
	// Load fetches and validates the manifest.
	Load(ctx context.Context) (*manifest.Manifest, error)
	// LoadPages fetches the page list of one book. A missing document
	// reports ErrNotFound.
	LoadPages(ctx context.Context, bookID string) ([]manifest.Page, error)
}

// FileSource reads the manifest and pages from the pipeline's output
// directory.
type FileSource struct {
	Dir string
}

func (s FileSource) Load(_ context.Context) (*manifest.Manifest, error) {
	return manifest.Read(filepath.Join(s.Dir, manifest.FileName))
}

func (s FileSource) LoadPages(_ context.Context, bookID string) ([]manifest.Page, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir, "books", bookID, "pages.json"))
	if os.IsNotExist(err) {
		return nil, notFound("pages for book", bookID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read pages for %s: %w", bookID, err)
	}

	var pages []manifest.Page
	if err := json.Unmarshal(data, &pages); err != nil {
		return nil, fmt.Errorf("failed to parse pages for %s: %w", bookID, err)
	}
	return pages, nil
}

// StorageSource reads a published manifest from an object-storage bucket.
type StorageSource struct {
	Client storage.Client
	Bucket string
}

func (s StorageSource) Load(ctx context.Context) (*manifest.Manifest, error) {
	data, err := s.read(ctx, manifest.FileName)
	if err != nil {
		return nil, err
	}

	var m manifest.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := manifest.Validate(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s StorageSource) LoadPages(ctx context.Context, bookID string) ([]manifest.Page, error) {
	data, err := s.read(ctx, "books/"+bookID+"/pages.json")
	if err != nil {
		if resp := minio.ToErrorResponse(err); resp.Code == "NoSuchKey" {
			return nil, notFound("pages for book", bookID)
		}
		return nil, err
	}

	var pages []manifest.Page
	if err := json.Unmarshal(data, &pages); err != nil {
		return nil, fmt.Errorf("failed to parse pages for %s: %w", bookID, err)
	}
	return pages, nil
}

func (s StorageSource) read(ctx context.Context, object string) ([]byte, error) {
	obj, err := s.Client.GetObject(ctx, s.Bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}
