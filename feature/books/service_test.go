package books_test

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"babybook/core/cache"
	"babybook/core/imageload"
	"babybook/core/manifest"
	"babybook/feature/books"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// countingSource serves a fixed manifest and counts loads, so tests can
// observe whether the cache absorbed a call.
type countingSource struct {
	m     *manifest.Manifest
	pages map[string][]manifest.Page
	loads atomic.Int64
}

func (s *countingSource) Load(context.Context) (*manifest.Manifest, error) {
	s.loads.Add(1)
	return s.m, nil
}

func (s *countingSource) LoadPages(_ context.Context, id string) ([]manifest.Page, error) {
	p, ok := s.pages[id]
	if !ok {
		return nil, books.ErrNotFound
	}
	return p, nil
}

func testCache(t *testing.T) *cache.Cache {
	t.Helper()
	c, err := cache.New(cache.Config{MaxMemoryBytes: 1 << 20}, nil, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func testService(t *testing.T, src *countingSource) *books.Service {
	t.Helper()
	images := imageload.NewLoader(imageload.Config{}, zap.NewNop())
	return books.NewService(src, testCache(t), images, "http://assets.invalid", zap.NewNop())
}

// assetServer serves a 1x1 PNG for every GET and answers every HEAD, so
// preloads against it always resolve.
func assetServer(t *testing.T) *httptest.Server {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1, 1))))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(buf.Bytes())
	}))
	t.Cleanup(srv.Close)
	return srv
}

func entry(id, title string, pages int, modified time.Time, tags ...string) manifest.Book {
	return manifest.Book{
		BookEntry: manifest.BookEntry{
			ID:           id,
			Title:        title,
			TotalPages:   pages,
			LastModified: modified,
			CreatedAt:    modified.Add(-24 * time.Hour),
			Tags:         tags,
		},
	}
}

func fixtureSource() *countingSource {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &countingSource{
		m: &manifest.Manifest{
			Version: manifest.Version,
			Books: []manifest.Book{
				entry("first-smile", "First Smile", 3, base, "milestones"),
				entry("walking", "Walking", 5, base.Add(48*time.Hour), "milestones", "outdoors"),
				entry("bath-time", "Bath Time", 2, base.Add(24*time.Hour), "daily"),
			},
		},
		pages: map[string][]manifest.Page{
			"walking": {{
				ID:         "walking-1",
				Title:      "Walking",
				PageNumber: 1,
				Image:      manifest.ResponsiveImage{Src: "books/walking/pages/walking-1-640.png", Width: 640, Height: 480},
			}},
		},
	}
}

func TestLoadManifestCaches(t *testing.T) {
	src := fixtureSource()
	svc := testService(t, src)
	ctx := context.Background()

	m1, err := svc.LoadManifest(ctx, false)
	require.NoError(t, err)
	m2, err := svc.LoadManifest(ctx, false)
	require.NoError(t, err)

	assert.Len(t, m1.Books, 3)
	assert.Len(t, m2.Books, 3)
	assert.Equal(t, int64(1), src.loads.Load(), "second load should hit the cache")
}

func TestLoadManifestForceRefreshes(t *testing.T) {
	src := fixtureSource()
	svc := testService(t, src)
	ctx := context.Background()

	_, err := svc.LoadManifest(ctx, false)
	require.NoError(t, err)
	_, err = svc.LoadManifest(ctx, true)
	require.NoError(t, err)

	assert.Equal(t, int64(2), src.loads.Load())
}

func TestGetAllBooksFilters(t *testing.T) {
	svc := testService(t, fixtureSource())
	ctx := context.Background()

	list, err := svc.GetAllBooks(ctx, books.Filters{Query: "smile"}, books.Pagination{})
	require.NoError(t, err)
	require.Equal(t, 1, list.Total)
	assert.Equal(t, "first-smile", list.Books[0].ID)

	list, err = svc.GetAllBooks(ctx, books.Filters{Tags: []string{"outdoors", "daily"}}, books.Pagination{})
	require.NoError(t, err)
	ids := make([]string, 0, len(list.Books))
	for _, b := range list.Books {
		ids = append(ids, b.ID)
	}
	assert.ElementsMatch(t, []string{"walking", "bath-time"}, ids)

	after := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	list, err = svc.GetAllBooks(ctx, books.Filters{ModifiedAfter: after}, books.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, 2, list.Total)
}

func TestGetAllBooksSorts(t *testing.T) {
	svc := testService(t, fixtureSource())
	ctx := context.Background()

	list, err := svc.GetAllBooks(ctx, books.Filters{SortBy: "totalPages"}, books.Pagination{})
	require.NoError(t, err)
	require.Len(t, list.Books, 3)
	assert.Equal(t, "bath-time", list.Books[0].ID)
	assert.Equal(t, "walking", list.Books[2].ID)

	list, err = svc.GetAllBooks(ctx, books.Filters{SortBy: "lastModified", SortDesc: true}, books.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, "walking", list.Books[0].ID)

	// Default sort is title ascending.
	list, err = svc.GetAllBooks(ctx, books.Filters{}, books.Pagination{})
	require.NoError(t, err)
	assert.Equal(t, "Bath Time", list.Books[0].Title)
}

func TestGetAllBooksPaginates(t *testing.T) {
	svc := testService(t, fixtureSource())
	ctx := context.Background()

	list, err := svc.GetAllBooks(ctx, books.Filters{}, books.Pagination{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, list.Total)
	assert.Len(t, list.Books, 2)

	list, err = svc.GetAllBooks(ctx, books.Filters{}, books.Pagination{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, list.Total)
	assert.Len(t, list.Books, 1)

	// Past the end yields an empty page, not an error.
	list, err = svc.GetAllBooks(ctx, books.Filters{}, books.Pagination{Page: 9, Limit: 2})
	require.NoError(t, err)
	assert.Empty(t, list.Books)
}

func TestGetBookByID(t *testing.T) {
	src := fixtureSource()
	svc := testService(t, src)
	ctx := context.Background()

	book, err := svc.GetBookByID(ctx, "walking")
	require.NoError(t, err)
	assert.Equal(t, "Walking", book.Title)

	// Second lookup is served from the per-book cache.
	before := src.loads.Load()
	_, err = svc.GetBookByID(ctx, "walking")
	require.NoError(t, err)
	assert.Equal(t, before, src.loads.Load())

	_, err = svc.GetBookByID(ctx, "nope")
	assert.ErrorIs(t, err, books.ErrNotFound)
}

func TestGetBookPages(t *testing.T) {
	svc := testService(t, fixtureSource())
	ctx := context.Background()

	pages, err := svc.GetBookPages(ctx, "walking")
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, 1, pages[0].PageNumber)

	_, err = svc.GetBookPages(ctx, "nope")
	assert.ErrorIs(t, err, books.ErrNotFound)
}

func TestPreloadBook(t *testing.T) {
	srv := assetServer(t)

	src := fixtureSource()
	src.m.Books[1].CoverImage = "books/walking/cover.png"

	images := imageload.NewLoader(imageload.Config{CacheMaxEntries: 10}, zap.NewNop(),
		imageload.WithHTTPClient(srv.Client()))
	svc := books.NewService(src, testCache(t), images, srv.URL, zap.NewNop())

	results, err := svc.PreloadBook(context.Background(), "walking")
	require.NoError(t, err)
	require.Len(t, results, 2, "cover plus one page image")
	for _, r := range results {
		assert.Equal(t, 1, r.Width)
		assert.Equal(t, "png", r.Format)
	}
	assert.Equal(t, 2, images.CacheLen())
}

func TestPreloadBookUnknownID(t *testing.T) {
	svc := testService(t, fixtureSource())

	_, err := svc.PreloadBook(context.Background(), "nope")
	assert.ErrorIs(t, err, books.ErrNotFound)
}

func TestGetAllTags(t *testing.T) {
	svc := testService(t, fixtureSource())

	tags, err := svc.GetAllTags(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"daily", "milestones", "outdoors"}, tags)
}
