package cache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"babybook/core/storage"

	"github.com/minio/minio-go/v7"
)

// BlobStore is the large-object tier: a content-addressed store for
// entries too big for the key-value tier to carry comfortably.
type BlobStore interface {
	Put(ctx context.Context, key string, e Entry) error
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// blobName addresses a cache key as <2-char shard>/<sha256>.json.
func blobName(key string) string {
	sum := sha256.Sum256([]byte(key))
	h := hex.EncodeToString(sum[:])
	return filepath.Join(h[:2], h+".json")
}

// fsBlobStore stores entries as JSON files under a root directory.
type fsBlobStore struct {
	root string
}

// NewFSBlobStore creates a filesystem-backed blob tier rooted at dir.
func NewFSBlobStore(dir string) (BlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob dir: %w", err)
	}
	return &fsBlobStore{root: dir}, nil
}

func (s *fsBlobStore) Put(_ context.Context, key string, e Entry) error {
	data, err := json.Marshal(&e)
	if err != nil {
		return err
	}
	path := filepath.Join(s.root, blobName(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *fsBlobStore) Get(_ context.Context, key string) (*Entry, bool, error) {
	data, err := os.ReadFile(filepath.Join(s.root, blobName(key)))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, false, err
	}
	return &e, true, nil
}

func (s *fsBlobStore) Delete(_ context.Context, key string) error {
	err := os.Remove(filepath.Join(s.root, blobName(key)))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *fsBlobStore) Clear(_ context.Context) error {
	if err := os.RemoveAll(s.root); err != nil {
		return err
	}
	return os.MkdirAll(s.root, 0o755)
}

// objectBlobStore keeps blobs in an object-storage bucket under a prefix,
// for deployments that already run MinIO/S3.
type objectBlobStore struct {
	client storage.Client
	bucket string
	prefix string
}

// NewObjectBlobStore creates an object-storage-backed blob tier.
func NewObjectBlobStore(client storage.Client, bucket string) BlobStore {
	return &objectBlobStore{client: client, bucket: bucket, prefix: "cache/"}
}

func (s *objectBlobStore) Put(ctx context.Context, key string, e Entry) error {
	data, err := json.Marshal(&e)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, s.bucket, s.prefix+blobName(key),
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	return err
}

func (s *objectBlobStore) Get(ctx context.Context, key string) (*Entry, bool, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.prefix+blobName(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, false, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		// Minio surfaces missing keys on first read, not on GetObject.
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return nil, false, nil
		}
		return nil, false, err
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, false, err
	}
	return &e, true, nil
}

func (s *objectBlobStore) Delete(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, s.prefix+blobName(key), minio.RemoveObjectOptions{})
}

func (s *objectBlobStore) Clear(ctx context.Context) error {
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return obj.Err
		}
		if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return err
		}
	}
	return nil
}
