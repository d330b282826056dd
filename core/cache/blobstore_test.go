package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"babybook/core/storage/mocks"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestFSBlobStoreRoundtrip(t *testing.T) {
	store, err := NewFSBlobStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	e := Entry{Data: []byte(`"v"`), Timestamp: time.Now(), TTL: time.Minute, Size: 3}
	require.NoError(t, store.Put(ctx, "k", e))

	got, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, e.Data, got.Data)

	require.NoError(t, store.Delete(ctx, "k"))
	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestObjectBlobStorePut(t *testing.T) {
	var uploaded []byte
	client := new(mocks.Client)
	client.On("PutObject", mock.Anything, "babybook", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			data, err := io.ReadAll(args.Get(3).(io.Reader))
			require.NoError(t, err)
			uploaded = data
		}).
		Return(minio.UploadInfo{}, nil)

	store := NewObjectBlobStore(client, "babybook")
	e := Entry{Data: []byte(`"v"`), Timestamp: time.Now(), TTL: time.Minute, Size: 3}
	require.NoError(t, store.Put(context.Background(), "k", e))

	var got Entry
	require.NoError(t, json.Unmarshal(uploaded, &got))
	assert.Equal(t, e.Data, got.Data)
	client.AssertExpectations(t)
}

func TestObjectBlobStoreGet(t *testing.T) {
	e := Entry{Data: []byte(`"v"`), Timestamp: time.Now(), TTL: time.Minute, Size: 3}
	data, err := json.Marshal(&e)
	require.NoError(t, err)

	client := new(mocks.Client)
	client.On("GetObject", mock.Anything, "babybook", "cache/"+blobName("k"), mock.Anything).
		Return(io.NopCloser(bytes.NewReader(data)), nil)

	store := NewObjectBlobStore(client, "babybook")
	got, ok, err := store.Get(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, e.Data, got.Data)
}

// errReadCloser reproduces how minio surfaces a missing key: GetObject
// succeeds and the first read fails.
type errReadCloser struct{ err error }

func (r errReadCloser) Read([]byte) (int, error) { return 0, r.err }
func (r errReadCloser) Close() error             { return nil }

func TestObjectBlobStoreGetMissingKey(t *testing.T) {
	client := new(mocks.Client)
	client.On("GetObject", mock.Anything, "babybook", mock.Anything, mock.Anything).
		Return(errReadCloser{minio.ErrorResponse{Code: "NoSuchKey"}}, nil)

	store := NewObjectBlobStore(client, "babybook")
	_, ok, err := store.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestObjectBlobStoreDelete(t *testing.T) {
	client := new(mocks.Client)
	client.On("RemoveObject", mock.Anything, "babybook", "cache/"+blobName("k"), mock.Anything).
		Return(nil)

	store := NewObjectBlobStore(client, "babybook")
	require.NoError(t, store.Delete(context.Background(), "k"))
	client.AssertExpectations(t)
}
