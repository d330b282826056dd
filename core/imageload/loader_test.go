package imageload

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 99, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testConfig() Config {
	return Config{
		TimeoutSeconds:       5,
		RetryCount:           2,
		RetryBaseDelayMillis: 1,
		PreloadCount:         5,
		CacheMaxEntries:      10,
		CacheTTLSeconds:      60,
		PreferredFormats:     "webp",
		EffectiveType:        "4g",
		LowWidth:             480,
		LowQuality:           40,
		MediumWidth:          1024,
		MediumQuality:        65,
		HighWidth:            1920,
		HighQuality:          85,
	}
}

func TestLoadImage(t *testing.T) {
	img := pngBytes(t, 12, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(img)
	}))
	defer srv.Close()

	l := NewLoader(testConfig(), zap.NewNop(), WithHTTPClient(srv.Client()))

	r, err := l.LoadImage(context.Background(), srv.URL+"/photo.png", Options{})
	require.NoError(t, err)
	assert.Equal(t, 12, r.Width)
	assert.Equal(t, 8, r.Height)
	assert.Equal(t, "png", r.Format)
	assert.False(t, r.FromCache)
	assert.Greater(t, r.LoadTime, time.Duration(0))

	// Second load is a cache hit.
	r2, err := l.LoadImage(context.Background(), srv.URL+"/photo.png", Options{})
	require.NoError(t, err)
	assert.True(t, r2.FromCache)
}

func TestCoalescingSharesOneFetch(t *testing.T) {
	img := pngBytes(t, 4, 4)
	var fetches atomic.Int32
	gate := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		<-gate
		w.Write(img)
	}))
	defer srv.Close()

	l := NewLoader(testConfig(), zap.NewNop(), WithHTTPClient(srv.Client()))

	const workers = 6
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = l.LoadImage(context.Background(), srv.URL+"/same.png", Options{})
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	for i := 0; i < workers; i++ {
		assert.NoError(t, errs[i])
	}
	assert.Equal(t, int32(1), fetches.Load(), "identical concurrent requests must share one fetch")
}

func TestAdaptiveQualityOn2G(t *testing.T) {
	img := pngBytes(t, 4, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(img)
	}))
	defer srv.Close()

	l := NewLoader(testConfig(), zap.NewNop(),
		WithHTTPClient(srv.Client()),
		WithEstimator(StaticEstimator{Type: "2g"}))

	r, err := l.LoadImage(context.Background(), srv.URL+"/photo.png", Options{Quality: QualityAdaptive})
	require.NoError(t, err)

	u, err := url.Parse(r.URL)
	require.NoError(t, err)
	assert.Equal(t, "480", u.Query().Get("w"), "2g must resolve to the low tier without caller instruction")
	assert.Equal(t, "40", u.Query().Get("q"))
}

func TestDataSaverForcesLowTier(t *testing.T) {
	assert.Equal(t, QualityLow, resolveTier(StaticEstimator{Type: "4g", Save: true}))
	assert.Equal(t, QualityLow, resolveTier(StaticEstimator{Type: "slow-2g"}))
	assert.Equal(t, QualityMedium, resolveTier(StaticEstimator{Type: "3g"}))
	assert.Equal(t, QualityHigh, resolveTier(StaticEstimator{Type: "4g"}))
}

func TestRetryExhaustion(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.RetryCount = 3
	l := NewLoader(cfg, zap.NewNop(), WithHTTPClient(srv.Client()))

	_, err := l.LoadImage(context.Background(), srv.URL+"/always-fails.png", Options{})
	require.Error(t, err)
	assert.Equal(t, int32(4), attempts.Load(), "retryCount+1 total attempts before surfacing")
	assert.Contains(t, err.Error(), "after 4 attempts")
}

func TestFormatProbePrefersSibling(t *testing.T) {
	img := pngBytes(t, 4, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Sibling webp exists; jpg exists too.
		if strings.HasSuffix(r.URL.Path, ".webp") || strings.HasSuffix(r.URL.Path, ".jpg") {
			w.Write(img)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	l := NewLoader(testConfig(), zap.NewNop(), WithHTTPClient(srv.Client()))

	r, err := l.LoadImage(context.Background(), srv.URL+"/photo.jpg", Options{ProbeFormats: true})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(r.URL, "/photo.webp"), "probe should pick the webp sibling, got %s", r.URL)
}

func TestFormatProbeFallsBackWhenMissing(t *testing.T) {
	img := pngBytes(t, 4, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, ".jpg") {
			w.Write(img)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	l := NewLoader(testConfig(), zap.NewNop(), WithHTTPClient(srv.Client()))

	r, err := l.LoadImage(context.Background(), srv.URL+"/photo.jpg", Options{ProbeFormats: true})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(r.URL, "/photo.jpg"))
}

func TestPreloadIsBestEffortAndBounded(t *testing.T) {
	img := pngBytes(t, 4, 4)
	var fetched sync.Map
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetched.Store(r.URL.Path, true)
		if strings.Contains(r.URL.Path, "broken") {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Write(img)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.PreloadCount = 3
	cfg.RetryCount = 0
	l := NewLoader(cfg, zap.NewNop(), WithHTTPClient(srv.Client()))

	urls := []string{
		srv.URL + "/a.png",
		srv.URL + "/broken.png",
		srv.URL + "/b.png",
		srv.URL + "/beyond-the-bound.png",
	}
	results := l.PreloadImages(context.Background(), urls, Options{})

	assert.Len(t, results, 2, "the broken URL is skipped, not fatal")
	_, loadedBeyond := fetched.Load("/beyond-the-bound.png")
	assert.False(t, loadedBeyond, "preload must stop at the configured bound")
}

func TestResultCacheEvictionBound(t *testing.T) {
	c := newResultCache(3, time.Minute)
	for i := 0; i < 10; i++ {
		c.put(fmt.Sprintf("k%d", i), Result{URL: fmt.Sprintf("u%d", i)})
		assert.LessOrEqual(t, c.len(), 3)
	}

	// Oldest entries are gone, newest survive.
	_, ok := c.get("k0")
	assert.False(t, ok)
	_, ok = c.get("k9")
	assert.True(t, ok)
}

func TestResultCacheTTL(t *testing.T) {
	c := newResultCache(10, 10*time.Millisecond)
	c.put("k", Result{URL: "u"})

	_, ok := c.get("k")
	assert.True(t, ok)

	time.Sleep(20 * time.Millisecond)
	_, ok = c.get("k")
	assert.False(t, ok, "entry past its TTL reads as a miss")
	assert.Equal(t, 0, c.len())
}
